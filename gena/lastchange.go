package gena

import (
	"encoding/xml"
	"fmt"
	"sort"
	"sync"
)

const lastChangeNS = "urn:schemas-upnp-org:metadata-1-0/AVT/"

// LastChange is the per-service accumulator from spec.md §3/§4.8: a
// mapping from instance id to a mapping from state-variable name to
// its latest value. Fire serializes the accumulated delta to XML and
// clears it, per the AVTransport/RenderingControl convention.
//
// A *LastChange is safe for concurrent use; its own mutex is always
// acquired from inside the owning service manager's lock, never the
// other way around (spec.md §4.8 "Lock ordering").
type LastChange struct {
	mu        sync.Mutex
	instances map[uint32]map[string]string
}

// NewLastChange returns an empty accumulator.
func NewLastChange() *LastChange {
	return &LastChange{instances: make(map[uint32]map[string]string)}
}

// Set records the latest value of a state variable for an instance,
// to be included in the next Fire.
func (lc *LastChange) Set(instanceID uint32, variable, value string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	vars, ok := lc.instances[instanceID]
	if !ok {
		vars = make(map[string]string)
		lc.instances[instanceID] = vars
	}
	vars[variable] = value
}

// Empty reports whether any changes are pending.
func (lc *LastChange) Empty() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.instances) == 0
}

// Fire serializes the accumulated delta to the LastChange inner-XML
// document and clears the accumulator. Returns ("", false) if nothing
// had changed since the last fire.
func (lc *LastChange) Fire() (string, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if len(lc.instances) == 0 {
		return "", false
	}
	doc := lastChangeXML{XMLNS: lastChangeNS}
	ids := make([]uint32, 0, len(lc.instances))
	for id := range lc.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		inst := instanceXML{Val: id}
		vars := lc.instances[id]
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			inst.Variables = append(inst.Variables, variableXML{XMLName: xml.Name{Local: name}, Val: vars[name]})
		}
		doc.Instances = append(doc.Instances, inst)
	}
	lc.instances = make(map[uint32]map[string]string)

	body, err := xml.Marshal(doc)
	if err != nil {
		// Marshaling a closed, well-typed struct of strings cannot fail
		// in practice; surface loudly if it ever does.
		panic(fmt.Sprintf("gena: marshal LastChange: %v", err))
	}
	return string(body), true
}

type lastChangeXML struct {
	XMLName   xml.Name      `xml:"Event"`
	XMLNS     string        `xml:"xmlns,attr"`
	Instances []instanceXML `xml:"InstanceID"`
}

type instanceXML struct {
	Val       uint32         `xml:"val,attr"`
	Variables []variableXML `xml:",any"`
}

type variableXML struct {
	XMLName xml.Name
	Val     string `xml:"val,attr"`
}

// AppendCurrentState is the capability hook spec.md §4.8 calls for
// constructing a fresh initial-event LastChange: implementations
// supply their current instance ids and populate each instance's
// variables into a throwaway *LastChange used only for that one
// initial-event render, never the live one.
type AppendCurrentState func(acc *LastChange, instanceID uint32)

// BuildInitialLastChange constructs the initial-event LastChange body
// for a set of instance ids, per spec.md §4.8. If ids is empty,
// instance 0 is used.
func BuildInitialLastChange(ids []uint32, appendState AppendCurrentState) (string, error) {
	if len(ids) == 0 {
		ids = []uint32{0}
	}
	acc := NewLastChange()
	for _, id := range ids {
		appendState(acc, id)
	}
	body, ok := acc.Fire()
	if !ok {
		return "", fmt.Errorf("gena: initial LastChange produced no state for instances %v", ids)
	}
	return body, nil
}
