package config

import (
	"os"
	"strconv"
)

func GetenvStr(key string) string {
	return os.Getenv(key)
}

func GetenvInt(key string) (*int, error) {
	str := os.Getenv(key)
	if str == "" {
		i := 0
		return &i, nil
	}

	i, err := strconv.Atoi(str)
	if err != nil {
		i = 0
	}
	return &i, err
}

func GetenvBool(key string) (*bool, error) {
	str := os.Getenv(key)
	if str == "" {
		b := false
		return &b, nil
	}

	b, err := strconv.ParseBool(str)
	if err != nil {
		b = false
	}
	return &b, err
}
