package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"pipeline-acceptance/internal/urlpath"
)

// AcceptanceConfigEnv names the variable holding either a path to a JSON file or
// the JSON document itself.
const AcceptanceConfigEnv = "ACCEPTANCE_TEST_CONFIG"

const (
	KeyJobFlowName        = "job_flow_name"
	KeyTasksRepo          = "tasks_repo"
	KeyTasksBranch        = "tasks_branch"
	KeyTasksLogPath       = "tasks_log_path"
	KeyConnectionUser     = "connection_user"
	KeyTasksOutputURL     = "tasks_output_url"
	KeyIdentifier         = "identifier"
	KeyCredentialsFileURL = "credentials_file_url"
	KeyVerticaCredsURL    = "vertica_creds_url"
	KeyOddjobJar          = "oddjob_jar"
	KeyGeolocationData    = "geolocation_data"
	KeyPattern            = "pattern"
	KeyNumReducers        = "num_reducers"
)

var RequiredAcceptanceKeys = []string{
	KeyJobFlowName,
	KeyTasksRepo,
	KeyTasksBranch,
	KeyTasksLogPath,
	KeyConnectionUser,
	KeyTasksOutputURL,
	KeyIdentifier,
	KeyCredentialsFileURL,
	KeyVerticaCredsURL,
	KeyOddjobJar,
	KeyGeolocationData,
}

var ErrMissingKeys = errors.New("acceptance config is missing required keys")

type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingKeys, strings.Join(e.Keys, ", "))
}

func (e *MissingKeysError) Unwrap() error {
	return ErrMissingKeys
}

// AcceptanceConfig is the decoded ACCEPTANCE_TEST_CONFIG document. Values are kept
// raw so keys the harness does not know about still round-trip.
type AcceptanceConfig struct {
	values map[string]json.RawMessage
}

func LoadAcceptance() (AcceptanceConfig, error) {
	v, ok := os.LookupEnv(AcceptanceConfigEnv)
	if !ok {
		return ParseAcceptance(nil)
	}
	return loadAcceptanceValue(v)
}

func loadAcceptanceValue(v string) (AcceptanceConfig, error) {
	if data, err := os.ReadFile(v); err == nil {
		cfg, err := ParseAcceptance(data)
		if err != nil {
			return cfg, fmt.Errorf("acceptance config file %s: %w", v, err)
		}
		return cfg, nil
	}
	return ParseAcceptance([]byte(v))
}

// ParseAcceptance decodes a JSON object and checks that every required key is present.
// Empty input yields an empty config, which then fails the required key check. On a
// *MissingKeysError the partial config is still returned so callers can use it as
// a base for per-run overrides.
func ParseAcceptance(data []byte) (AcceptanceConfig, error) {
	values := make(map[string]json.RawMessage)
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return AcceptanceConfig{}, fmt.Errorf("decode acceptance config: %w", err)
		}
	}
	cfg := AcceptanceConfig{values: values}
	return cfg, cfg.Validate()
}

func NewAcceptanceConfig(values map[string]string) AcceptanceConfig {
	raw := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		b, _ := json.Marshal(v)
		raw[k] = b
	}
	return AcceptanceConfig{values: raw}
}

// Merge returns a copy of c with every key of other applied on top.
func (c AcceptanceConfig) Merge(other AcceptanceConfig) AcceptanceConfig {
	out := make(map[string]json.RawMessage, len(c.values)+len(other.values))
	for k, v := range c.values {
		out[k] = v
	}
	for k, v := range other.values {
		out[k] = v
	}
	return AcceptanceConfig{values: out}
}

func (c AcceptanceConfig) With(key, value string) AcceptanceConfig {
	return c.Merge(NewAcceptanceConfig(map[string]string{key: value}))
}

func (c AcceptanceConfig) Validate() error {
	var missing []string
	for _, key := range RequiredAcceptanceKeys {
		if _, ok := c.values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

func (c AcceptanceConfig) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Get returns the value of key as a string. Non-string JSON values are returned in
// their JSON encoding.
func (c AcceptanceConfig) Get(key string) string {
	raw, ok := c.values[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Patterns returns the optional list of extra event log patterns. A single string
// is accepted as a one element list.
func (c AcceptanceConfig) Patterns() []string {
	raw, ok := c.values[KeyPattern]
	if !ok {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// NumReducers returns the optional reducer count, accepting 3 and "3" alike.
// Anything that is not a positive integer reads as unset (0).
func (c AcceptanceConfig) NumReducers() int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Get(KeyNumReducers)))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// OutputBucket splits tasks_output_url into bucket and key prefix. Without a
// tasks_output_url it returns fallback and an empty prefix.
func (c AcceptanceConfig) OutputBucket(fallback string) (string, string, error) {
	out := c.TasksOutputURL()
	if out == "" {
		return fallback, "", nil
	}
	bucket, prefix, err := urlpath.SplitS3(out)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", KeyTasksOutputURL, err)
	}
	return bucket, prefix, nil
}

func (c AcceptanceConfig) JobFlowName() string        { return c.Get(KeyJobFlowName) }
func (c AcceptanceConfig) TasksRepo() string          { return c.Get(KeyTasksRepo) }
func (c AcceptanceConfig) TasksBranch() string        { return c.Get(KeyTasksBranch) }
func (c AcceptanceConfig) TasksLogPath() string       { return c.Get(KeyTasksLogPath) }
func (c AcceptanceConfig) ConnectionUser() string     { return c.Get(KeyConnectionUser) }
func (c AcceptanceConfig) TasksOutputURL() string     { return c.Get(KeyTasksOutputURL) }
func (c AcceptanceConfig) Identifier() string         { return c.Get(KeyIdentifier) }
func (c AcceptanceConfig) CredentialsFileURL() string { return c.Get(KeyCredentialsFileURL) }
func (c AcceptanceConfig) VerticaCredsURL() string    { return c.Get(KeyVerticaCredsURL) }
func (c AcceptanceConfig) OddjobJar() string          { return c.Get(KeyOddjobJar) }
func (c AcceptanceConfig) GeolocationData() string    { return c.Get(KeyGeolocationData) }

// MarshalJSON lets the config travel as a workflow argument.
func (c AcceptanceConfig) MarshalJSON() ([]byte, error) {
	if c.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.values)
}

func (c *AcceptanceConfig) UnmarshalJSON(data []byte) error {
	values := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	c.values = values
	return nil
}
