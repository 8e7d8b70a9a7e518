package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const completeConfig = `{
	"job_flow_name": "j-acceptance",
	"tasks_repo": "https://github.com/example/pipeline.git",
	"tasks_branch": "main",
	"tasks_log_path": "/tmp/acceptance-logs",
	"connection_user": "hadoop",
	"tasks_output_url": "s3://acceptance/out",
	"identifier": "jenkins-42",
	"credentials_file_url": "s3://acceptance/creds/mysql.json",
	"vertica_creds_url": "s3://acceptance/creds/vertica.json",
	"oddjob_jar": "s3://acceptance/lib/oddjob.jar",
	"geolocation_data": "s3://acceptance/geo/GeoIP.dat",
	"pattern": [".*tracking.log-(?P<date>\\d{8}).*\\.gz"]
}`

func TestParseAcceptanceComplete(t *testing.T) {
	cfg, err := ParseAcceptance([]byte(completeConfig))
	require.NoError(t, err)
	require.Equal(t, "j-acceptance", cfg.JobFlowName())
	require.Equal(t, "s3://acceptance/out", cfg.TasksOutputURL())
	require.Equal(t, "jenkins-42", cfg.Identifier())
	require.Equal(t, []string{`.*tracking.log-(?P<date>\d{8}).*\.gz`}, cfg.Patterns())
	require.True(t, cfg.Has(KeyOddjobJar))
	require.False(t, cfg.Has(KeyNumReducers))
}

func TestParseAcceptanceMissingKeys(t *testing.T) {
	_, err := ParseAcceptance([]byte(`{"identifier": "x", "tasks_repo": "r"}`))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingKeys))

	var missing *MissingKeysError
	require.True(t, errors.As(err, &missing))
	require.Len(t, missing.Keys, len(RequiredAcceptanceKeys)-2)
	require.NotContains(t, missing.Keys, KeyIdentifier)
	require.Contains(t, missing.Keys, KeyGeolocationData)
}

func TestParseAcceptanceEmptyFailsRequiredKeys(t *testing.T) {
	_, err := ParseAcceptance(nil)
	require.ErrorIs(t, err, ErrMissingKeys)
}

func TestParseAcceptanceInvalidJSON(t *testing.T) {
	_, err := ParseAcceptance([]byte(`{not json`))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMissingKeys))
}

func TestLoadAcceptanceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acceptance.json")
	require.NoError(t, os.WriteFile(path, []byte(completeConfig), 0o644))
	t.Setenv(AcceptanceConfigEnv, path)

	cfg, err := LoadAcceptance()
	require.NoError(t, err)
	require.Equal(t, "hadoop", cfg.ConnectionUser())
}

func TestLoadAcceptanceInline(t *testing.T) {
	t.Setenv(AcceptanceConfigEnv, completeConfig)

	cfg, err := LoadAcceptance()
	require.NoError(t, err)
	require.Equal(t, "main", cfg.TasksBranch())
}

func TestAcceptanceConfigJSONRoundTrip(t *testing.T) {
	cfg, err := ParseAcceptance([]byte(completeConfig))
	require.NoError(t, err)

	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded AcceptanceConfig
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NoError(t, decoded.Validate())
	require.Equal(t, cfg.VerticaCredsURL(), decoded.VerticaCredsURL())
}

func TestPatternsSingleString(t *testing.T) {
	cfg := NewAcceptanceConfig(map[string]string{KeyPattern: "foo"})
	require.Equal(t, []string{"foo"}, cfg.Patterns())
}

func TestLoadRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	require.EqualError(t, err, "POSTGRES_DSN is required")

	t.Setenv("POSTGRES_DSN", "postgres://localhost/acceptance")
	t.Setenv("ACCEPTANCE_KEEP_OUTPUTS", "true")
	t.Setenv("ACCEPTANCE_TASK_TIMEOUT_SEC", "bogus")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.KeepOutputs)
	require.Equal(t, DefaultTaskTimeoutSec, cfg.TaskTimeoutSec)
	require.Equal(t, defaultTaskQueue, cfg.TemporalTaskQueue)
}

func TestMergeOverridesKeys(t *testing.T) {
	base := NewAcceptanceConfig(map[string]string{KeyIdentifier: "base", KeyTasksBranch: "main"})
	merged := base.Merge(NewAcceptanceConfig(map[string]string{KeyIdentifier: "override"}))

	require.Equal(t, "override", merged.Identifier())
	require.Equal(t, "main", merged.TasksBranch())
	require.Equal(t, "base", base.Identifier())

	require.Equal(t, "feature", merged.With(KeyTasksBranch, "feature").TasksBranch())
	require.Equal(t, "main", merged.TasksBranch())
}

func TestParseAcceptancePartialConfigReturned(t *testing.T) {
	cfg, err := ParseAcceptance([]byte(`{"tasks_output_url": "s3://acceptance/out"}`))
	require.ErrorIs(t, err, ErrMissingKeys)
	require.Equal(t, "s3://acceptance/out", cfg.TasksOutputURL())
}

func TestNumReducers(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want int
	}{
		{name: "unset", doc: `{}`, want: 0},
		{name: "number", doc: `{"num_reducers": 4}`, want: 4},
		{name: "string", doc: `{"num_reducers": " 2 "}`, want: 2},
		{name: "zero", doc: `{"num_reducers": 0}`, want: 0},
		{name: "negative", doc: `{"num_reducers": -3}`, want: 0},
		{name: "garbage", doc: `{"num_reducers": "many"}`, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg AcceptanceConfig
			require.NoError(t, json.Unmarshal([]byte(tc.doc), &cfg))
			require.Equal(t, tc.want, cfg.NumReducers())
		})
	}
}

func TestOutputBucket(t *testing.T) {
	cfg, err := ParseAcceptance([]byte(completeConfig))
	require.NoError(t, err)

	bucket, prefix, err := cfg.OutputBucket("fallback")
	require.NoError(t, err)
	require.Equal(t, "acceptance", bucket)
	require.Equal(t, "out", prefix)

	bucket, prefix, err = NewAcceptanceConfig(nil).OutputBucket("fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", bucket)
	require.Empty(t, prefix)

	_, _, err = NewAcceptanceConfig(map[string]string{KeyTasksOutputURL: "/local/out"}).OutputBucket("fallback")
	require.ErrorContains(t, err, "tasks_output_url")
}
