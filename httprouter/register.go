// SPDX-License-Identifier: GPL-3.0-or-later

package httprouter

import "github.com/loopkit/evcore"

// suffixList holds the handler rings reachable once a (user-agent, host,
// path-axis) combination has been resolved: a prefix tree keyed on the
// *reversed* path suffix, plus the ring used when no suffix was registered.
//
// A specific-path registration with both an exact Path and a PathSuffix
// also lands here (rather than directly on a bare ring) so PathSuffix can
// compose with Path the way the distilled spec's ContentID comment
// requires ("PathSuffix composes with either").
type suffixList struct {
	bySuffix    *evcore.PrefixTree[*ring]
	defaultRing ring
}

func newSuffixList() *suffixList { return &suffixList{} }

func (sl *suffixList) ringFor(suffix string) *ring {
	if suffix == "" {
		return &sl.defaultRing
	}
	if sl.bySuffix == nil {
		sl.bySuffix = evcore.NewPrefixTree[*ring]()
	}
	key := reverseString(suffix)
	if r, ok := sl.bySuffix.LookupExact([]byte(key)); ok {
		return r
	}
	r := &ring{}
	sl.bySuffix.Insert([]byte(key), r)
	return r
}

// candidateRings returns, in the fixed precedence order (suffix match
// before no-suffix), every ring that could apply to path.
func (sl *suffixList) candidateRings(path string) []*ring {
	var out []*ring
	if sl.bySuffix != nil {
		out = append(out, sl.bySuffix.LookupAll([]byte(reverseString(path)))...)
	}
	out = append(out, &sl.defaultRing)
	return out
}

// pathTable holds, for one virtual host, the exact/prefix/default axes of
// path matching.
type pathTable struct {
	exact             map[string]*suffixList
	byPrefix          *evcore.PrefixTree[*suffixList]
	defaultSuffixList suffixList
}

func newPathTable() *pathTable { return &pathTable{} }

func (t *pathTable) suffixListFor(path, pathPrefix string) *suffixList {
	switch {
	case path != "":
		if t.exact == nil {
			t.exact = make(map[string]*suffixList)
		}
		sl, ok := t.exact[path]
		if !ok {
			sl = newSuffixList()
			t.exact[path] = sl
		}
		return sl
	case pathPrefix != "":
		if t.byPrefix == nil {
			t.byPrefix = evcore.NewPrefixTree[*suffixList]()
		}
		if sl, ok := t.byPrefix.LookupExact([]byte(pathPrefix)); ok {
			return sl
		}
		sl := newSuffixList()
		t.byPrefix.Insert([]byte(pathPrefix), sl)
		return sl
	default:
		return &t.defaultSuffixList
	}
}

// candidateSuffixLists returns, in precedence order (exact path > prefix
// path > no-prefix), every suffixList reachable from path.
func (t *pathTable) candidateSuffixLists(path string) []*suffixList {
	var out []*suffixList
	if t.exact != nil {
		if sl, ok := t.exact[path]; ok {
			out = append(out, sl)
		}
	}
	if t.byPrefix != nil {
		out = append(out, t.byPrefix.LookupAll([]byte(path))...)
	}
	out = append(out, &t.defaultSuffixList)
	return out
}

// pathVHostTable holds, for one user-agent prefix bucket, the host-specific
// and default path tables.
type pathVHostTable struct {
	byHost       map[string]*pathTable
	defaultTable pathTable
}

func newPathVHostTable() *pathVHostTable { return &pathVHostTable{} }

func (v *pathVHostTable) pathTableFor(host string) *pathTable {
	if host == "" {
		return &v.defaultTable
	}
	if v.byHost == nil {
		v.byHost = make(map[string]*pathTable)
	}
	pt, ok := v.byHost[host]
	if !ok {
		pt = newPathTable()
		v.byHost[host] = pt
	}
	return pt
}

// candidatePathTables returns, host-specific first then default, the path
// tables to try for host.
func (v *pathVHostTable) candidatePathTables(host string) []*pathTable {
	var out []*pathTable
	if v.byHost != nil {
		if pt, ok := v.byHost[host]; ok {
			out = append(out, pt)
		}
	}
	out = append(out, &v.defaultTable)
	return out
}

func (db *ContentDB) vhostTableFor(userAgentPrefix string) *pathVHostTable {
	if userAgentPrefix == "" {
		if db.defaultVHost == nil {
			db.defaultVHost = newPathVHostTable()
		}
		return db.defaultVHost
	}
	if db.byUserAgent == nil {
		db.byUserAgent = evcore.NewPrefixTree[*pathVHostTable]()
	}
	if v, ok := db.byUserAgent.LookupExact([]byte(userAgentPrefix)); ok {
		return v
	}
	v := newPathVHostTable()
	db.byUserAgent.Insert([]byte(userAgentPrefix), v)
	return v
}

// AddHandler registers h under id, linking it into the target ring
// according to action. Ref-count bookkeeping and destroy-on-replace happen
// inside the ring (§9's redesign of the source's manual ref-counting).
func (db *ContentDB) AddHandler(id ContentID, h *Handler, action Action) {
	vhost := db.vhostTableFor(id.UserAgentPrefix)
	pt := vhost.pathTableFor(id.Host)
	sl := pt.suffixListFor(id.Path, id.PathPrefix)
	r := sl.ringFor(id.PathSuffix)
	r.apply(action, h)
}
