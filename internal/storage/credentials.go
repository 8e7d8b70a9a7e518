package storage

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/tidwall/gjson"
)

// Credentials is the connection document referenced by credentials_file_url and
// vertica_creds_url.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

func (c Credentials) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func ParseCredentials(data []byte, defaultPort int) (Credentials, error) {
	if !gjson.ValidBytes(data) {
		return Credentials{}, fmt.Errorf("credentials document is not valid json")
	}
	doc := gjson.ParseBytes(data)
	creds := Credentials{
		Host:     doc.Get("host").String(),
		Port:     int(doc.Get("port").Int()),
		Username: doc.Get("username").String(),
		Password: doc.Get("password").String(),
		Database: doc.Get("database").String(),
	}
	if creds.Username == "" {
		creds.Username = doc.Get("user").String()
	}
	if creds.Port == 0 {
		creds.Port = defaultPort
	}
	if creds.Host == "" {
		return Credentials{}, fmt.Errorf("credentials document has no host")
	}
	if creds.Username == "" {
		return Credentials{}, fmt.Errorf("credentials document has no username")
	}
	return creds, nil
}

type documentReader interface {
	ReadAll(ctx context.Context, location string) ([]byte, error)
}

func FetchCredentials(ctx context.Context, src documentReader, location string, defaultPort int) (Credentials, error) {
	data, err := src.ReadAll(ctx, location)
	if err != nil {
		return Credentials{}, fmt.Errorf("fetch credentials %s: %w", location, err)
	}
	creds, err := ParseCredentials(data, defaultPort)
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials %s: %w", location, err)
	}
	return creds, nil
}
