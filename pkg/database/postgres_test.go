package database

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sk-governance-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "sk", Password: "pw", Name: "sk_governance", SSLMode: "disable"})

	assert.Equal(t, "host=db port=5432 user=sk password=pw dbname=sk_governance sslmode=disable", dsn)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "terms_single_active"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "terms_single_active"))
	assert.False(t, IsUniqueViolation(err, "terms_pkey"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain"), ""))
}
