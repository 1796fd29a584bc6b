// Package deployment loads the model artifact set the service is started with.
package deployment

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"heartrisk/ml"
)

// Files names the artifacts inside a deployment directory.
type Files struct {
	Model    string
	Features string
	Classes  string
}

func DefaultFiles() Files {
	return Files{
		Model:    "model.json",
		Features: "feature_columns.txt",
		Classes:  "class_names.txt",
	}
}

// Artifacts is the immutable state shared by every request handler.
type Artifacts struct {
	Dir          string
	ModelPath    string
	FeaturesPath string
	ClassesPath  string

	Model    ml.Classifier
	Features []string
	Classes  []string
}

// MissingPathError reports an artifact that does not exist on disk.
type MissingPathError struct {
	What string
	Path string
}

func (e *MissingPathError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.What, e.Path)
}

// Load verifies dir and the three artifacts exist, then reads them. Every
// missing path is reported in the returned error.
func Load(dir string, files Files) (*Artifacts, error) {
	a := &Artifacts{
		Dir:          dir,
		ModelPath:    filepath.Join(dir, files.Model),
		FeaturesPath: filepath.Join(dir, files.Features),
		ClassesPath:  filepath.Join(dir, files.Classes),
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &MissingPathError{What: "deployment folder", Path: dir}
	}

	var missing error
	for _, check := range []struct{ what, path string }{
		{"model file", a.ModelPath},
		{"feature columns file", a.FeaturesPath},
		{"class names file", a.ClassesPath},
	} {
		if _, err := os.Stat(check.path); err != nil {
			missing = multierr.Append(missing, &MissingPathError{What: check.what, Path: check.path})
		}
	}
	if missing != nil {
		return nil, missing
	}

	model, err := ml.LoadModel(a.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	a.Model = model

	if a.Features, err = readLines(a.FeaturesPath); err != nil {
		return nil, fmt.Errorf("read feature columns: %w", err)
	}
	if a.Classes, err = readLines(a.ClassesPath); err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}

	if err := a.check(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Artifacts) check() error {
	var err error
	if len(a.Features) == 0 {
		err = multierr.Append(err, errors.New("feature columns file is empty"))
	}
	if len(a.Classes) == 0 {
		err = multierr.Append(err, errors.New("class names file is empty"))
	}
	if n := a.Model.NumClasses(); n != len(a.Classes) {
		err = multierr.Append(err, fmt.Errorf("model predicts %d classes but %d class names are listed", n, len(a.Classes)))
	}
	schema := make(map[string]bool, len(a.Features))
	for _, name := range a.Features {
		schema[name] = true
	}
	for _, name := range a.Model.InputFeatures() {
		if !schema[name] {
			err = multierr.Append(err, fmt.Errorf("model input %q is not in the feature schema", name))
		}
	}
	return err
}

// readLines returns the whitespace-trimmed, non-blank lines of path in order.
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
