package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-ini/ini"
)

type OverrideKey struct {
	Name  string
	Value string
}

type OverrideSection struct {
	Name string
	Keys []OverrideKey
}

// TaskOverride is the pipeline configuration that redirects every task to the
// run's isolated locations. Section order is stable.
type TaskOverride []OverrideSection

func (o TaskOverride) Lookup(section, key string) (string, bool) {
	for _, s := range o {
		if s.Name != section {
			continue
		}
		for _, k := range s.Keys {
			if k.Name == key {
				return k.Value, true
			}
		}
	}
	return "", false
}

func (h *Harness) EventLogPatterns() []string {
	patterns := append([]string(nil), h.Patterns...)
	return append(patterns, h.Config.Patterns()...)
}

func (h *Harness) TaskConfigOverride() TaskOverride {
	cfg := h.Config
	return TaskOverride{
		{Name: "hive", Keys: []OverrideKey{
			{"database", h.DatabaseName},
			{"warehouse_path", h.WarehousePath},
		}},
		{Name: "map-reduce", Keys: []OverrideKey{
			{"marker", h.MarkerPath},
		}},
		{Name: "manifest", Keys: []OverrideKey{
			{"path", h.ManifestPath},
			{"lib_jar", cfg.OddjobJar()},
		}},
		{Name: "database-import", Keys: []OverrideKey{
			{"credentials", cfg.CredentialsFileURL()},
			{"destination", h.WarehousePath},
			{"database", h.ImportDatabaseName},
		}},
		{Name: "database-export", Keys: []OverrideKey{
			{"credentials", cfg.CredentialsFileURL()},
			{"database", h.ExportDatabaseName},
		}},
		{Name: "vertica-export", Keys: []OverrideKey{
			{"credentials", cfg.VerticaCredsURL()},
			{"schema", h.Schema},
		}},
		{Name: "course-catalog", Keys: []OverrideKey{
			{"catalog_url", h.CatalogURL},
		}},
		{Name: "geolocation", Keys: []OverrideKey{
			{"geolocation_data", cfg.GeolocationData()},
		}},
		{Name: "event-logs", Keys: []OverrideKey{
			{"source", h.TestSrc},
			{"pattern", jsonList(h.EventLogPatterns())},
		}},
	}
}

// RenderOverride writes the override as an INI document.
func RenderOverride(o TaskOverride) ([]byte, error) {
	f := ini.Empty()
	for _, s := range o {
		sec, err := f.NewSection(s.Name)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", s.Name, err)
		}
		for _, k := range s.Keys {
			if _, err := sec.NewKey(k.Name, k.Value); err != nil {
				return nil, fmt.Errorf("key %s.%s: %w", s.Name, k.Name, err)
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return string(bytes.TrimSpace(buf.Bytes()))
}
