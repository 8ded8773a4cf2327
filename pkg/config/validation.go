package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Cache.IdleFlushEnabled() && cfg.Cache.FlushInterval <= 0 {
		return errors.New("cache.flush_interval must be positive when the idle flusher is enabled")
	}
	if !cfg.Storage.RegionStoreInMemory && cfg.Storage.RegionStorePath == "" {
		return errors.New("storage.region_store_path is required unless region_store_in_memory is set")
	}
	if cfg.Transfer.JobTimeout < 0 {
		return errors.New("transfer.job_timeout must not be negative")
	}
	return nil
}
