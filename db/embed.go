// Package db provides the embedded schema of the catalog replica.
package db

import _ "embed"

// Schema contains the DDL of the tables the sales desk reads.
//
//go:embed migrations/001_catalog.sql
var Schema string
