package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	vOnce    sync.Once
	validate *validator.Validate
)

func structValidator() *validator.Validate {
	vOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(yamlTagName)
	})
	return validate
}

// Validate checks field constraints and cross references (secret_ref targets,
// unresolved ${VAR} placeholders, duplicate webhook paths).
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q constraint (got %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}

	for name, value := range cfg.Secrets {
		if value == "" {
			return fmt.Errorf("secrets.%s is empty", name)
		}
		if m := envVarPattern.FindStringSubmatch(value); m != nil {
			return fmt.Errorf("secrets.%s: environment variable ${%s} is not set", name, m[1])
		}
	}

	if cfg.Webhooks == nil {
		return nil
	}

	seen := make(map[string]bool, len(cfg.Webhooks.Endpoints))
	for i, ep := range cfg.Webhooks.Endpoints {
		if seen[ep.Path] {
			return fmt.Errorf("webhooks.endpoints[%d]: duplicate path %q", i, ep.Path)
		}
		seen[ep.Path] = true

		if _, ok := cfg.Secrets[ep.SecretRef]; !ok {
			return fmt.Errorf("webhooks.endpoints[%d]: secret_ref %q not found in secrets", i, ep.SecretRef)
		}
	}
	return nil
}

// fieldPath turns "Config.webhooks.endpoints[0].path" into
// "webhooks.endpoints[0].path".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
