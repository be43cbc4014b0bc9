package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitwise74/beacon-api/internal/classify"
	"bitwise74/beacon-api/internal/model"

	"gorm.io/datatypes"
)

// BrowserData is the environment descriptor the generator page collects next
// to the fingerprint.
type BrowserData struct {
	ScreenWidth         *int     `json:"screenWidth"`
	ScreenHeight        *int     `json:"screenHeight"`
	ScreenDepth         *int     `json:"screenDepth"`
	ViewportWidth       *int     `json:"viewportWidth"`
	ViewportHeight      *int     `json:"viewportHeight"`
	Timezone            *string  `json:"timezone"`
	TimezoneOffset      *int     `json:"timezoneOffset"`
	Language            *string  `json:"language"`
	Languages           []string `json:"languages"`
	Platform            *string  `json:"platform"`
	Vendor              *string  `json:"vendor"`
	HardwareConcurrency *int     `json:"hardwareConcurrency"`
	DeviceMemory        *float64 `json:"deviceMemory"`
	MaxTouchPoints      *int     `json:"maxTouchPoints"`
	CookiesEnabled      *bool    `json:"cookiesEnabled"`
	DoNotTrack          flexBool `json:"doNotTrack"`
}

// flexBool accepts navigator.doNotTrack in any of the shapes browsers report
// it: a boolean, "1"/"0", "yes"/"no" or "unspecified".
type flexBool struct {
	v *bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var v bool
	switch x := raw.(type) {
	case nil:
		return nil
	case bool:
		v = x
	case float64:
		v = x != 0
	case string:
		switch x {
		case "1", "yes", "true":
			v = true
		case "0", "no", "false":
			v = false
		default:
			return nil
		}
	default:
		return nil
	}

	f.v = &v
	return nil
}

type fingerprintComponent struct {
	Value json.RawMessage `json:"value"`
}

type fingerprint struct {
	VisitorID  string                          `json:"visitorId"`
	Components map[string]fingerprintComponent `json:"components"`
}

type webglValue struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}

// ProfileInput is the raw material for a creator profile.
type ProfileInput struct {
	BeaconID    string
	Identity    *string
	UserAgent   string
	Fingerprint json.RawMessage
	BrowserData json.RawMessage
	CreatedAt   time.Time
}

var ErrNoFingerprint = errors.New("no fingerprint provided")

// BuildCreatorProfile decodes the opaque fingerprint payload and browser
// descriptor into a BeaconCreator row. The payload itself is kept verbatim.
func BuildCreatorProfile(in ProfileInput) (*model.BeaconCreator, error) {
	if isEmptyJSON(in.Fingerprint) || isEmptyJSON(in.BrowserData) {
		return nil, ErrNoFingerprint
	}

	var fp fingerprint
	if err := json.Unmarshal(in.Fingerprint, &fp); err != nil {
		return nil, fmt.Errorf("failed to decode fingerprint, %w", err)
	}

	var bd BrowserData
	if err := json.Unmarshal(in.BrowserData, &bd); err != nil {
		return nil, fmt.Errorf("failed to decode browser data, %w", err)
	}

	env := classify.DescribeEnvironment(in.UserAgent)

	creator := &model.BeaconCreator{
		BeaconID:       in.BeaconID,
		ClientIdentity: in.Identity,
		CreatedAt:      in.CreatedAt.UTC(),
		VisitorID:      optional(fp.VisitorID),

		Browser:        optional(env.Browser),
		BrowserVersion: optional(env.BrowserVersion),
		OS:             optional(env.OS),
		OSVersion:      optional(env.OSVersion),
		Device:         optional(env.Device),
		DeviceType:     optional(env.DeviceType),

		ScreenWidth:    bd.ScreenWidth,
		ScreenHeight:   bd.ScreenHeight,
		ScreenDepth:    bd.ScreenDepth,
		ViewportWidth:  bd.ViewportWidth,
		ViewportHeight: bd.ViewportHeight,

		Timezone:       bd.Timezone,
		TimezoneOffset: bd.TimezoneOffset,
		Language:       bd.Language,
		Languages:      model.LanguageList(bd.Languages),

		Platform:            bd.Platform,
		Vendor:              bd.Vendor,
		HardwareConcurrency: bd.HardwareConcurrency,
		DeviceMemory:        bd.DeviceMemory,
		MaxTouchPoints:      bd.MaxTouchPoints,
		CookiesEnabled:      bd.CookiesEnabled,
		DoNotTrack:          bd.DoNotTrack.v,

		CanvasHash: componentString(fp.Components, "canvas"),
		AudioHash:  componentString(fp.Components, "audio"),
		FontsHash:  componentString(fp.Components, "fonts"),

		FullFingerprint: datatypes.JSON(in.Fingerprint),
	}

	if c, ok := fp.Components["webgl"]; ok && !isEmptyJSON(c.Value) {
		var w webglValue
		if err := json.Unmarshal(c.Value, &w); err == nil {
			creator.WebGLVendor = optional(w.Vendor)
			creator.WebGLRenderer = optional(w.Renderer)
		}
	}

	return creator, nil
}

// Component values are strings for most sources but numbers or objects for
// others; non strings are stored as their JSON text.
func componentString(components map[string]fingerprintComponent, name string) *string {
	c, ok := components[name]
	if !ok || isEmptyJSON(c.Value) {
		return nil
	}

	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return optional(s)
	}

	raw := string(c.Value)
	return &raw
}

func isEmptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
