package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

// ConfigBaseName is the base name of the rollnode configuration file without extension.
const ConfigBaseName = "rollnode"

// ConfigExtension is the file extension for the configuration file without the leading dot.
const ConfigExtension = "yaml"

// ConfigYaml is the filename for the rollnode configuration file.
const ConfigYaml = ConfigBaseName + "." + ConfigExtension

// ErrReadYaml is the error returned when reading the rollnode.yaml file fails.
var ErrReadYaml = fmt.Errorf("reading %s", ConfigYaml)

// ReadYaml reads the YAML configuration from the rollnode.yaml file in dir
// and returns it on top of DefaultConfig.
func ReadYaml(dir string) (config Config, err error) {
	v := viper.New()
	v.SetConfigName(ConfigBaseName)
	v.SetConfigType(ConfigExtension)
	v.AddConfigPath(dir)

	config = DefaultConfig

	if err = v.ReadInConfig(); err != nil {
		err = fmt.Errorf("%w decoding file: %w", ErrReadYaml, err)
		return
	}

	if err = v.Unmarshal(&config, decoderOptions); err != nil {
		err = fmt.Errorf("%w unmarshaling config: %w", ErrReadYaml, err)
		return
	}

	config.RootDir = dir
	return
}

// WriteYamlConfig writes the YAML configuration to the rollnode.yaml file.
// It ensures the directory exists and writes the configuration with proper permissions.
func WriteYamlConfig(config Config) error {
	configPath := filepath.Join(config.RootDir, ConfigYaml)

	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPerm); err != nil {
		return err
	}

	yamlCommentMap := yaml.CommentMap{}
	addComment := func(path string, comment string) {
		yamlCommentMap[path] = []*yaml.Comment{
			yaml.HeadComment(comment),
		}
	}

	var processFields func(t reflect.Type, prefix string)
	processFields = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}

			yamlTag := field.Tag.Get("yaml")
			if yamlTag == "" || yamlTag == "-" {
				continue
			}

			fieldPath := yamlTag
			if prefix != "" {
				fieldPath = prefix + "." + fieldPath
			}

			if comment := field.Tag.Get("comment"); comment != "" {
				addComment("$."+fieldPath, comment)
			}

			if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(DurationWrapper{}) {
				processFields(field.Type, fieldPath)
			}
		}
	}
	processFields(reflect.TypeOf(Config{}), "")

	data, err := yaml.MarshalWithOptions(config, yaml.WithComment(yamlCommentMap))
	if err != nil {
		return fmt.Errorf("error marshaling YAML data: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error writing %s file: %w", ConfigYaml, err)
	}

	return nil
}

// EnsureRoot ensures that the root directory exists.
func EnsureRoot(rootDir string) error {
	if rootDir == "" {
		return fmt.Errorf("root directory cannot be empty")
	}

	if err := os.MkdirAll(rootDir, DefaultDirPerm); err != nil {
		return fmt.Errorf("could not create directory %q: %w", rootDir, err)
	}

	return nil
}
