package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// rawDocuments is the intermediate result of walking every globbed
// config file, before webhook/rule references are resolved against
// each other by build.go.
type rawDocuments struct {
	server   serverDocument
	webhooks map[string]webhookDocument
	rules    map[string][]ruleSpec // keyed by the owning Rules document's metadata.name
}

// Load reads the Server document at serverPath, expands its
// spec.configs globs relative to the document's directory, parses
// every matched file's Webhook and Rules documents, and builds the
// fully-resolved Config the dispatcher consults.
func Load(serverPath string) (*Config, error) {
	serverBytes, err := os.ReadFile(serverPath)
	if err != nil {
		return nil, fmt.Errorf("config: read server document %s: %w", serverPath, err)
	}

	var server serverDocument
	if err := yaml.Unmarshal(serverBytes, &server); err != nil {
		return nil, fmt.Errorf("config: parse server document %s: %w", serverPath, err)
	}
	if err := checkHeader(server.docHeader, kindServer); err != nil {
		return nil, fmt.Errorf("config: %s: %w", serverPath, err)
	}

	raw := rawDocuments{
		server:   server,
		webhooks: make(map[string]webhookDocument),
		rules:    make(map[string][]ruleSpec),
	}

	baseDir := filepath.Dir(serverPath)
	for _, pattern := range server.Spec.Configs {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("config: invalid config glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			if err := loadDocumentFile(match, &raw); err != nil {
				return nil, err
			}
		}
	}

	return build(raw)
}

func loadDocumentFile(path string, raw *rawDocuments) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}

		var header docHeader
		if err := node.Decode(&header); err != nil {
			return fmt.Errorf("config: parse document header in %s: %w", path, err)
		}
		if err := checkHeader(header, ""); err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}

		switch header.Kind {
		case kindWebhook:
			var doc webhookDocument
			if err := node.Decode(&doc); err != nil {
				return fmt.Errorf("config: parse webhook document in %s: %w", path, err)
			}
			if _, dup := raw.webhooks[doc.Metadata.Name]; dup {
				return fmt.Errorf("config: duplicate webhook metadata.name %q", doc.Metadata.Name)
			}
			raw.webhooks[doc.Metadata.Name] = doc
		case kindRules:
			var doc rulesDocument
			if err := node.Decode(&doc); err != nil {
				return fmt.Errorf("config: parse rules document in %s: %w", path, err)
			}
			if _, dup := raw.rules[doc.Metadata.Name]; dup {
				return fmt.Errorf("config: duplicate rules metadata.name %q", doc.Metadata.Name)
			}
			raw.rules[doc.Metadata.Name] = doc.Spec.Rules
		default:
			return fmt.Errorf("config: %s: unexpected document kind %q", path, header.Kind)
		}
	}
	return nil
}

func checkHeader(h docHeader, expectKind string) error {
	if h.APIVersion != supportedAPIVersion {
		return fmt.Errorf("unsupported apiVersion %q (expected %q)", h.APIVersion, supportedAPIVersion)
	}
	if expectKind != "" && h.Kind != expectKind {
		return fmt.Errorf("expected kind %q, got %q", expectKind, h.Kind)
	}
	return nil
}
