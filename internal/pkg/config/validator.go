package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser matches the parser behind cron.New: five fields plus descriptors
// such as "@daily".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronSchedule checks schedule with the same parser the scheduler uses.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return errors.New("invalid cron schedule: cannot be empty")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks that timezone is a loadable IANA name. The result
// depends on the tz database of the host, so images must ship tzdata.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return errors.New("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// ValidateDuration checks min <= d <= max.
func ValidateDuration(d, min, max time.Duration) error {
	return checkRange(d, min, max, "duration")
}

// ValidateIntRange checks min <= value <= max.
func ValidateIntRange(value, min, max int) error {
	return checkRange(value, min, max, "value")
}

func checkRange[T int | time.Duration](v, min, max T, what string) error {
	switch {
	case min > max:
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	case v < min:
		return fmt.Errorf("%s %v is below minimum %v", what, v, min)
	case v > max:
		return fmt.Errorf("%s %v exceeds maximum %v", what, v, max)
	}
	return nil
}
