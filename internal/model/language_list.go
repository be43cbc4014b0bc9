package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// LanguageList stores navigator.languages as a comma joined column.
// Language tags never contain commas so the encoding is lossless.
type LanguageList []string

// GormDataType tells gorm the column type, since an empty list has no value
// to infer it from.
func (LanguageList) GormDataType() string {
	return "text"
}

// Value implements the driver.Valuer interface.
func (l LanguageList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}

	tags := make([]string, 0, len(l))
	for _, tag := range l {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if strings.Contains(tag, ",") {
			return nil, fmt.Errorf("invalid language tag %q", tag)
		}

		tags = append(tags, tag)
	}

	if len(tags) == 0 {
		return nil, nil
	}

	return strings.Join(tags, ","), nil
}

// Scan implements the sql.Scanner interface.
func (l *LanguageList) Scan(value any) error {
	var str string

	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("failed to scan LanguageList, %v", value)
	}

	if str == "" {
		*l = nil
		return nil
	}

	*l = strings.Split(str, ",")
	return nil
}
