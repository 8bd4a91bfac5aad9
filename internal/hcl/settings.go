package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/tesys/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// decodeSettings evaluates a `settings` attribute into a flat string map.
// An absent attribute yields nil.
func decodeSettings(ctx context.Context, expr hcl.Expression) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid settings: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("settings must be known at load time")
	}

	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("settings must be an object, got %s", ty.FriendlyName())
	}

	out := make(map[string]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		key := k.AsString()
		s, err := settingString(v)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", key, err)
		}
		out[key] = s
	}
	logger.Debug("Decoded plugin settings.", "count", len(out))
	return out, nil
}

// settingString converts a primitive cty value to its string form.
func settingString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("value cannot be null")
	}
	if !v.Type().IsPrimitiveType() {
		return "", fmt.Errorf("must be a string, number or bool, got %s", v.Type().FriendlyName())
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", err
	}
	var s string
	if err := gocty.FromCtyValue(sv, &s); err != nil {
		return "", err
	}
	return s, nil
}
