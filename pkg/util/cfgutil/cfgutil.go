// Copyright (C) 2017 ScyllaDB

package cfgutil

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/config"
)

// ParseYAML loads files in order and populates target, keys in subsequent
// files overwrite keys in the previous ones. Missing files are skipped.
// Values in the form ${NAME} or ${NAME:default} are expanded from the
// environment.
func ParseYAML(target interface{}, files ...string) error {
	opts := []config.YAMLOption{config.Expand(os.LookupEnv)}
	for _, f := range files {
		exists, err := fileExists(f)
		if err != nil {
			return errors.Wrapf(err, "file %s", f)
		}
		if exists {
			opts = append(opts, config.File(f))
		}
	}

	cfg, err := config.NewYAML(opts...)
	if err != nil {
		return err
	}
	return cfg.Get(config.Root).Populate(target)
}

func fileExists(filename string) (bool, error) {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
