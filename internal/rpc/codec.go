// Package rpc describes the entitlement service spoken between the DairyKeeper
// client and the entitlement server.
//
// Messages are google.protobuf.Struct values whose fields mirror the JSON form
// of the types in package entitlements, so both ends share one schema (the
// entitlements JSON tags) without generated message code. The service
// description, server registration and a typed client stub live here.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxExactInt is the largest integer a Struct number (a double) holds exactly.
const maxExactInt = 1 << 53

// ErrInexactNumber is returned by Encode for integers beyond ±2^53, such as
// amounts in minor units that would be rounded in transit.
var ErrInexactNumber = errors.New("number not representable exactly")

// Encode converts v to a Struct through its JSON form. Integers outside
// ±2^53 are rejected rather than rounded.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	st := &structpb.Struct{}
	if string(b) == "null" {
		return st, nil
	}
	if err := checkExact(b); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return st, nil
}

// Decode fills v from st through its JSON form. A nil st decodes as an empty object.
func Decode(st *structpb.Struct, v any) error {
	if st == nil {
		st = &structpb.Struct{}
	}
	b, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

func checkExact(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return walkNumbers(doc, "")
}

func walkNumbers(v any, path string) error {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			if err := walkNumbers(e, path+"."+k); err != nil {
				return err
			}
		}
	case []any:
		for i, e := range x {
			if err := walkNumbers(e, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case json.Number:
		if strings.ContainsAny(string(x), ".eE") {
			return nil
		}
		n, err := x.Int64()
		if err != nil || n > maxExactInt || n < -maxExactInt {
			return fmt.Errorf("%w: %s = %s", ErrInexactNumber, path, x)
		}
	}
	return nil
}

// tabRequest selects a tab; an empty tab means "all tabs" where allowed.
type tabRequest struct {
	Tab string `json:"tab"`
}

type offersResponse struct {
	Offers []entitlements.SubscriptionOffer `json:"offers"`
}

type pingResponse struct {
	Status string `json:"status"`
}
