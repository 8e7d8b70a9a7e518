package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/go-sql-driver/mysql"
	_ "github.com/vertica/vertica-sql-go"
)

const (
	DefaultMySQLPort   = 3306
	DefaultVerticaPort = 5433
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid database identifier %q", name)
	}
	return nil
}

func OpenMySQL(creds Credentials) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = creds.Username
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = creds.Addr()
	cfg.MultiStatements = true
	cfg.ParseTime = true
	return sql.Open("mysql", cfg.FormatDSN())
}

func OpenVertica(creds Credentials) (*sql.DB, error) {
	dsn := url.URL{
		Scheme: "vertica",
		User:   url.UserPassword(creds.Username, creds.Password),
		Host:   creds.Addr(),
		Path:   "/" + creds.Database,
	}
	return sql.Open("vertica", dsn.String())
}

// DatabaseService owns one scratch MySQL database on a shared server.
type DatabaseService struct {
	db   *sql.DB
	name string
}

func NewDatabaseService(db *sql.DB, name string) (*DatabaseService, error) {
	if err := checkIdentifier(name); err != nil {
		return nil, err
	}
	return &DatabaseService{db: db, name: name}, nil
}

func (s *DatabaseService) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP DATABASE IF EXISTS `"+s.name+"`"); err != nil {
		return fmt.Errorf("drop database %s: %w", s.name, err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE DATABASE `"+s.name+"`"); err != nil {
		return fmt.Errorf("create database %s: %w", s.name, err)
	}
	return nil
}

// ExecuteSQLFile runs every statement of the file inside the scratch database.
func (s *DatabaseService) ExecuteSQLFile(ctx context.Context, path string) error {
	sqlText, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "USE `"+s.name+"`"); err != nil {
		return fmt.Errorf("use database %s: %w", s.name, err)
	}
	if _, err := conn.ExecContext(ctx, string(sqlText)); err != nil {
		return fmt.Errorf("execute %s: %w", path, err)
	}
	return nil
}

// Close releases the server connection pool the database was opened on.
func (s *DatabaseService) Close() error {
	return s.db.Close()
}

// VerticaService owns one scratch schema in the analytic database.
type VerticaService struct {
	db     *sql.DB
	schema string
}

func NewVerticaService(db *sql.DB, schema string) (*VerticaService, error) {
	if err := checkIdentifier(schema); err != nil {
		return nil, err
	}
	return &VerticaService{db: db, schema: schema}, nil
}

func (s *VerticaService) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+s.schema+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", s.schema, err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+s.schema); err != nil {
		return fmt.Errorf("create schema %s: %w", s.schema, err)
	}
	return nil
}

func (s *VerticaService) Close() error {
	return s.db.Close()
}
