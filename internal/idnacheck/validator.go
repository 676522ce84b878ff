/*
Package idnacheck decides whether a candidate label or domain is a legitimate
internationalized domain name.

A string is accepted only if it converts to its ASCII-Compatible Encoding and converting that
encoding back yields the identical string. Anything the IDNA mapping would rewrite (case,
compatibility forms, ideographic dots), anything the validity tables disallow, and anything
over the DNS length limits is rejected. The encoding itself comes from golang.org/x/net/idna.
*/
package idnacheck

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// ErrRejected is wrapped by every validation failure.
var ErrRejected = errors.New("idna: rejected")

// Validator performs round-trip IDNA validation. It holds no mutable state and is safe for
// concurrent use.
type Validator struct {
	profile *idna.Profile
}

type options struct {
	allowNonLDH bool
}

// Option configures a Validator.
type Option func(*options)

// AllowNonLDH relaxes the STD3 letters-digits-hyphen rule so that ASCII punctuation such as
// '|' survives validation.
func AllowNonLDH() Option {
	return func(o *options) { o.allowNonLDH = true }
}

// New returns a Validator using UTS #46 non-transitional lookup mapping with label
// validation, the bidi rule, hyphen checks and DNS length verification.
func New(opts ...Option) *Validator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	profileOpts := []idna.Option{
		idna.MapForLookup(),
		idna.Transitional(false),
		idna.BidiRule(),
		idna.VerifyDNSLength(true),
	}
	if o.allowNonLDH {
		// Must follow MapForLookup, which switches strict rules on.
		profileOpts = append(profileOpts, idna.StrictDomainName(false))
	}
	return &Validator{profile: idna.New(profileOpts...)}
}

var defaultValidator = New()

// Default returns the shared strict Validator.
func Default() *Validator {
	return defaultValidator
}

// Encode returns the ASCII-Compatible Encoding of s if s survives the round trip unchanged.
func (v *Validator) Encode(s string) (string, error) {
	ascii, err := v.profile.ToASCII(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrRejected, s, err)
	}
	back, err := v.profile.ToUnicode(ascii)
	if err != nil {
		return "", fmt.Errorf("%w: %q: decode of %q: %v", ErrRejected, s, ascii, err)
	}
	if back != s {
		return "", fmt.Errorf("%w: %q: round trip produced %q", ErrRejected, s, back)
	}
	return ascii, nil
}

// EncodeLabel is Encode restricted to a single label.
func (v *Validator) EncodeLabel(label string) (string, error) {
	if strings.Contains(label, ".") {
		return "", fmt.Errorf("%w: %q: label contains a separator", ErrRejected, label)
	}
	ascii, err := v.Encode(label)
	if err != nil {
		return "", err
	}
	// U+3002 and friends map to '.' and would already fail the round trip, but an encoded
	// form with a dot can never be a single label.
	if strings.Contains(ascii, ".") {
		return "", fmt.Errorf("%w: %q: encodes to multiple labels", ErrRejected, label)
	}
	return ascii, nil
}

// Valid reports whether s is accepted by Encode.
func (v *Validator) Valid(s string) bool {
	_, err := v.Encode(s)
	return err == nil
}
