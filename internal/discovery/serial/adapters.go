// internal/discovery/serial/adapters.go
package serial

import "strings"

// AdapterInfo describes a USB to serial bridge family
type AdapterInfo struct {
	Vendor     string
	Chip       string
	Confidence float64
}

// AdapterDatabase identifies the USB serial bridges instrument cables are
// built on
type AdapterDatabase struct {
	vendors map[string]*AdapterInfo
}

// NewAdapterDatabase creates the database with the common bridge vendors
func NewAdapterDatabase() *AdapterDatabase {
	db := &AdapterDatabase{vendors: make(map[string]*AdapterInfo)}

	db.Add("0403", &AdapterInfo{Vendor: "Future Technology Devices International", Chip: "FTDI", Confidence: 0.5})
	db.Add("067B", &AdapterInfo{Vendor: "Prolific Technology", Chip: "PL2303", Confidence: 0.5})
	db.Add("10C4", &AdapterInfo{Vendor: "Silicon Laboratories", Chip: "CP210x", Confidence: 0.4})
	db.Add("1A86", &AdapterInfo{Vendor: "QinHeng Electronics", Chip: "CH340", Confidence: 0.3})

	return db
}

// Add registers or replaces a vendor entry
func (db *AdapterDatabase) Add(vid string, info *AdapterInfo) {
	db.vendors[normalizeID(vid)] = info
}

// Lookup returns the adapter registered for vid, or nil
func (db *AdapterDatabase) Lookup(vid string) *AdapterInfo {
	return db.vendors[normalizeID(vid)]
}

// Len returns the number of known vendors
func (db *AdapterDatabase) Len() int {
	return len(db.vendors)
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.ToLower(id), "0x"))
}
