package utils

import (
	"encoding/json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io/fs"
	"io/ioutil"
	sigsyaml "sigs.k8s.io/yaml"
)

func JsonString(obj interface{}) string {
	bytes, err := json.MarshalIndent(obj, "", "  ")
	DoOrDie(errors.Wrapf(err, "unable to marshal json"))
	return string(bytes)
}

// YamlString goes through the json tags of obj, so it matches the wire format.
func YamlString(obj interface{}) string {
	bytes, err := sigsyaml.Marshal(obj)
	DoOrDie(errors.Wrapf(err, "unable to marshal yaml"))
	return string(bytes)
}

func ParseYaml[T any](bs []byte) (*T, error) {
	var t T
	if err := yaml.Unmarshal(bs, &t); err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal yaml")
	}
	return &t, nil
}

func ParseYamlFromFile[T any](path string) (*T, error) {
	bytes, err := ReadFileBytes(path)
	if err != nil {
		return nil, err
	}
	return ParseYaml[T](bytes)
}

// WriteFileBytes wraps calls to ioutil.WriteFile, ensuring that errors are wrapped in a stack trace
func WriteFileBytes(filename string, bytes []byte, perm fs.FileMode) error {
	return errors.Wrapf(ioutil.WriteFile(filename, bytes, perm), "unable to write file %s", filename)
}

// ReadFileBytes wraps calls to ioutil.ReadFile, ensuring that errors are wrapped in a stack trace
func ReadFileBytes(filename string) ([]byte, error) {
	bytes, err := ioutil.ReadFile(filename)
	return bytes, errors.Wrapf(err, "unable to read file %s", filename)
}
