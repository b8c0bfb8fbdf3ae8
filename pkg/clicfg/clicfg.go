// Package clicfg fills a config struct from parsed cli flags, using `flag:"name"` struct tags.
package clicfg

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
)

var (
	ErrCannotParseFlags = errors.New("cannot parse flags")
)

var durationType = reflect.TypeOf(time.Duration(0))

// ParseFlags sets every tagged field of the struct s points to from the flag with the same name.
func ParseFlags(c *cli.Command, s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("%w: expected pointer to struct, got %T", ErrCannotParseFlags, s)
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: expected pointer to struct, got pointer to %s", ErrCannotParseFlags, v.Kind())
	}

	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		flagName := field.Tag.Get("flag")
		if flagName == "" {
			continue
		}

		if err := setField(c, flagName, fieldValue); err != nil {
			return fmt.Errorf("%w: failed to set field %s: %w", ErrCannotParseFlags, field.Name, err)
		}
	}

	return nil
}

func setField(c *cli.Command, flagName string, fieldValue reflect.Value) error {
	if fieldValue.Type() == durationType {
		fieldValue.SetInt(int64(c.Duration(flagName)))
		return nil
	}

	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(c.String(flagName))
	case reflect.Bool:
		fieldValue.SetBool(c.Bool(flagName))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fieldValue.SetInt(int64(c.Int(flagName)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fieldValue.SetUint(uint64(c.Uint(flagName)))
	case reflect.Float32, reflect.Float64:
		fieldValue.SetFloat(c.Float64(flagName))
	default:
		// Anything else is read as a string and converted.
		if strVal := c.String(flagName); strVal != "" {
			return setValueFromString(fieldValue, strVal)
		}
	}

	return nil
}

func setValueFromString(fieldValue reflect.Value, strVal string) error {
	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(strVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(strVal)
		if err != nil {
			return err
		}
		fieldValue.SetBool(boolVal)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(strVal, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetInt(intVal)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintVal, err := strconv.ParseUint(strVal, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetUint(uintVal)
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(strVal, 64)
		if err != nil {
			return err
		}
		fieldValue.SetFloat(floatVal)
	default:
		return fmt.Errorf("unsupported type: %s", fieldValue.Kind())
	}
	return nil
}
