// Package models maps the count schema onto GORM structs. Domain types never
// carry ORM tags; every model converts with ToDomain and FromDomain.
package models
