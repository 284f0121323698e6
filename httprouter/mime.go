// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import "github.com/loopkit/evcore"

// SetMimeType registers the MIME type served for paths matching both prefix
// and suffix (either may be empty to mean "any"). A registration with both
// set lands in the nested suffix-then-prefix tree and is preferred over a
// suffix-only or prefix-only registration covering the same path, per
// §4.6.5.
func (db *ContentDB) SetMimeType(prefix, suffix, typ, subtype string) {
	mt := MimeType{Type: typ, Subtype: subtype}
	switch {
	case suffix != "" && prefix != "":
		if db.mimeBySuffix == nil {
			db.mimeBySuffix = evcore.NewPrefixTree[*evcore.PrefixTree[MimeType]]()
		}
		key := reverseString(suffix)
		inner, ok := db.mimeBySuffix.LookupExact([]byte(key))
		if !ok {
			inner = evcore.NewPrefixTree[MimeType]()
			db.mimeBySuffix.Insert([]byte(key), inner)
		}
		inner.Insert([]byte(prefix), mt)
	case suffix != "":
		if db.mimeBySuffixOnly == nil {
			db.mimeBySuffixOnly = evcore.NewPrefixTree[MimeType]()
		}
		db.mimeBySuffixOnly.Insert([]byte(reverseString(suffix)), mt)
	case prefix != "":
		if db.mimeByPrefix == nil {
			db.mimeByPrefix = evcore.NewPrefixTree[MimeType]()
		}
		db.mimeByPrefix.Insert([]byte(prefix), mt)
	default:
		db.SetDefaultMimeType(typ, subtype)
	}
}

// SetDefaultMimeType sets the MIME type served when no other registration
// matches.
func (db *ContentDB) SetDefaultMimeType(typ, subtype string) {
	mt := MimeType{Type: typ, Subtype: subtype}
	db.mimeDefault = &mt
}

// GetMimeType resolves path's MIME type through the lookup order fixed by
// §4.6.5: nested suffix+prefix match, then suffix-only, then prefix-only,
// then the default.
func (db *ContentDB) GetMimeType(path string) (MimeType, bool) {
	reversed := []byte(reverseString(path))

	if db.mimeBySuffix != nil {
		if inner, ok := db.mimeBySuffix.Lookup(reversed); ok {
			if mt, ok := inner.Lookup([]byte(path)); ok {
				return mt, true
			}
		}
	}
	if db.mimeBySuffixOnly != nil {
		if mt, ok := db.mimeBySuffixOnly.Lookup(reversed); ok {
			return mt, true
		}
	}
	if db.mimeByPrefix != nil {
		if mt, ok := db.mimeByPrefix.Lookup([]byte(path)); ok {
			return mt, true
		}
	}
	if db.mimeDefault != nil {
		return *db.mimeDefault, true
	}
	return MimeType{}, false
}
