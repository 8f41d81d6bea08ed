package models

import (
	"encoding/json"
	"fmt"
)

// IPInfo is the geo lookup result stored with a user's last login.
// Error is set instead of the location fields when the lookup failed.
type IPInfo struct {
	IP       string `json:"ip" bson:"ip"`
	City     string `json:"city,omitempty" bson:"city,omitempty"`
	Region   string `json:"region,omitempty" bson:"region,omitempty"`
	Country  string `json:"country,omitempty" bson:"country,omitempty"`
	Loc      string `json:"loc,omitempty" bson:"loc,omitempty"`
	Org      string `json:"org,omitempty" bson:"org,omitempty"`
	Postal   string `json:"postal,omitempty" bson:"postal,omitempty"`
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty"`
	Error    string `json:"error,omitempty" bson:"error,omitempty"`
}

// MarshalIPInfo encodes info for a JSONB column. A nil info becomes SQL NULL.
func MarshalIPInfo(info *IPInfo) ([]byte, error) {
	if info == nil {
		return nil, nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal ip info: %w", err)
	}
	return b, nil
}

// UnmarshalIPInfo decodes a JSONB column value. Empty input yields nil.
func UnmarshalIPInfo(raw []byte) (*IPInfo, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	info := &IPInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("unmarshal ip info: %w", err)
	}
	return info, nil
}
