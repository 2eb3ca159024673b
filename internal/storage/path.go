package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	exportKeyPattern     = regexp.MustCompile(`^([0-9]{4}/[0-9]{2}/[0-9]{2})/[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}\.parquet$`)
)

// BuildExportKey partitions exports by UTC day: yyyy/mm/dd/<id>.parquet.
func BuildExportKey(at time.Time, exportID string) (string, error) {
	if err := validatePathComponent(exportID, "export id"); err != nil {
		return "", err
	}
	ts := at.UTC()
	return path.Join(
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", ts.Month()),
		fmt.Sprintf("%02d", ts.Day()),
		exportID+".parquet",
	), nil
}

// ParseExportKey accepts only keys BuildExportKey could have produced and
// returns the UTC day the export was written.
func ParseExportKey(key string) (time.Time, error) {
	m := exportKeyPattern.FindStringSubmatch(key)
	if m == nil || strings.Contains(key, "..") {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	day, err := time.Parse("2006/01/02", m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return day, nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
