// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/logging"
)

// Each setting crosses the process boundary as an envelope naming its Go
// type:
//
//	{"type": "int64", "value": "30000"}
//	{"type": "time.Duration", "json": "5000000000"}
//
// Integers are sent as decimal strings since a Struct number is a float64.
// Values of other types are sent as JSON and restored to their type if it
// was registered with RegisterSettingType on the engine side, or to a
// generic JSON value otherwise.

const nilSettingType = "nil"

var basicSettingTypes = map[string]reflect.Type{}

func init() {
	for _, v := range []interface{}{
		false, "",
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
	} {
		t := reflect.TypeOf(v)
		basicSettingTypes[t.String()] = t
	}
	RegisterSettingType(time.Duration(0))
}

var settingTypes = struct {
	mu sync.Mutex
	m  map[string]reflect.Type
}{m: make(map[string]reflect.Type)}

// RegisterSettingType registers the type of v so that settings holding
// values of that type keep it across the process boundary. The type must
// round-trip through encoding/json.
func RegisterSettingType(v interface{}) {
	t := reflect.TypeOf(v)
	settingTypes.mu.Lock()
	defer settingTypes.mu.Unlock()
	settingTypes.m[t.String()] = t
}

func registeredSettingType(name string) (reflect.Type, bool) {
	settingTypes.mu.Lock()
	defer settingTypes.mu.Unlock()
	t, ok := settingTypes.m[name]
	return t, ok
}

// settingsToStruct converts engine settings. Keys are visited in sorted
// order so that logs and errors are deterministic.
func settingsToStruct(ctx context.Context, settings map[string]interface{}) (*structpb.Struct, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(settings))}
	keys := maps.Keys(settings)
	slices.Sort(keys)
	for _, k := range keys {
		env, err := settingEnvelope(settings[k])
		if err != nil {
			return nil, errors.Wrapf(err, "setting %s cannot be forwarded", k)
		}
		v, err := structpb.NewValue(env)
		if err != nil {
			return nil, errors.Wrapf(err, "setting %s cannot be forwarded", k)
		}
		logging.Debugf(ctx, "Forwarding setting %s=%v (%s)", k, settings[k], env["type"])
		st.Fields[k] = v
	}
	return st, nil
}

// settingsFromStruct restores settings converted by settingsToStruct.
func settingsFromStruct(st *structpb.Struct) (map[string]interface{}, error) {
	settings := make(map[string]interface{}, len(st.GetFields()))
	for k, v := range st.GetFields() {
		val, err := settingFromEnvelope(v.GetStructValue().AsMap())
		if err != nil {
			return nil, errors.Wrapf(err, "bad setting %s", k)
		}
		settings[k] = val
	}
	return settings, nil
}

func settingEnvelope(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return map[string]interface{}{"type": nilSettingType}, nil
	}
	rv := reflect.ValueOf(v)
	t := rv.Type()
	env := map[string]interface{}{"type": t.String()}
	if _, ok := basicSettingTypes[t.String()]; ok && t.PkgPath() == "" {
		switch t.Kind() {
		case reflect.Bool:
			env["value"] = rv.Bool()
		case reflect.String:
			env["value"] = rv.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			env["value"] = strconv.FormatInt(rv.Int(), 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			env["value"] = strconv.FormatUint(rv.Uint(), 10)
		case reflect.Float32, reflect.Float64:
			env["value"] = rv.Float()
		}
		return env, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	env["json"] = string(b)
	return env, nil
}

func settingFromEnvelope(env map[string]interface{}) (interface{}, error) {
	name := stringOf(env["type"])
	if name == nilSettingType {
		return nil, nil
	}
	if raw, ok := env["json"].(string); ok {
		t, ok := registeredSettingType(name)
		if !ok {
			var v interface{}
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, err
			}
			return v, nil
		}
		p := reflect.New(t)
		if err := json.Unmarshal([]byte(raw), p.Interface()); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", name)
		}
		return p.Elem().Interface(), nil
	}

	t, ok := basicSettingTypes[name]
	if !ok {
		return nil, errors.Errorf("unknown type %q", name)
	}
	rv := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, ok := env["value"].(bool)
		if !ok {
			return nil, errors.Errorf("%v is not a bool", env["value"])
		}
		rv.SetBool(b)
	case reflect.String:
		rv.SetString(stringOf(env["value"]))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(stringOf(env["value"]), 10, t.Bits())
		if err != nil {
			return nil, err
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(stringOf(env["value"]), 10, t.Bits())
		if err != nil {
			return nil, err
		}
		rv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, ok := env["value"].(float64)
		if !ok {
			return nil, errors.Errorf("%v is not a number", env["value"])
		}
		rv.SetFloat(f)
	}
	return rv.Interface(), nil
}
