package model

import (
	"os"
)

type Job struct {
	Name string
	// Config is the path of the job's config.xml, required for create and update.
	Config string
	// BuildParameters are passed to the build action as -p key=value.
	BuildParameters map[string]string
	// WaitForBuild makes the build action block until the build completes.
	WaitForBuild bool
}

func NewJob(j Job) (*Job, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

func (j *Job) GetKind() Kind {
	return KindJob
}

func (j *Job) GetName() string {
	return j.Name
}

func (j *Job) Validate() error {
	if err := nonEmptyString("name", j.Name); err != nil {
		return err
	}
	for k := range j.BuildParameters {
		if err := nonEmptyString("build parameter name", k); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) ResolveConfig() (string, error) {
	if j.Config == "" {
		return "", invalid("job %q has no config", j.Name)
	}
	info, err := os.Stat(j.Config)
	if err != nil {
		return "", invalid("%q does not exist or is not a valid Jenkins config file: %v", j.Config, err)
	}
	if !info.Mode().IsRegular() {
		return "", invalid("%q is not a regular file", j.Config)
	}
	return j.Config, nil
}
