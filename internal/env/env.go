// Package env reads flag defaults from the environment for the command-line tools.
package env

import (
	"os"
	"strconv"
	"time"
)

func GetString(key string, fallback string) string {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return res
}

func GetInt(key string, fallback int) int {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.Atoi(res)
	if err != nil {
		return fallback
	}
	return val
}

func GetFloat(key string, fallback float64) float64 {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return fallback
	}
	return val
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := time.ParseDuration(res)
	if err != nil {
		return fallback
	}
	return val
}
