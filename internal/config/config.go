// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
)

// Env holds the configuration values for the admin services.
type Env struct {
	Region          string
	Bucket          string
	AppName         string
	AppType         string
	AutoCreatePools bool
	DevBypassAuth   bool
}

// MustLoad reads the environment variables and returns an Env struct.
func MustLoad() Env {
	e := Env{
		Region:          get("AWS_REGION", "ap-south-1"),
		Bucket:          must("SURVEY_BUCKET"),
		AppName:         get("APP_NAME", "fomomon"),
		AppType:         get("APP_TYPE", "phone"),
		AutoCreatePools: get("AUTO_CREATE_POOLS", "") == "true",
		DevBypassAuth:   get("DEV_BYPASS_AUTH", "") == "true",
	}
	return e
}

// BucketRoot returns the public URL prefix for an org's objects,
// e.g. https://<bucket>.s3.amazonaws.com/<org>/.
func (e Env) BucketRoot(org string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s/", e.Bucket, org)
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// must returns the value of the environment variable k or panics if not set.
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic(fmt.Errorf("missing env %s", k))
	}
	return v
}
