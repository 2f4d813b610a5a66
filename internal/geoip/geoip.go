package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Resolver maps client IPs to a coarse location. A Resolver without a
// database is valid and resolves everything to an empty Location.
type Resolver struct {
	db *maxminddb.Reader
}

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

func New(dbPath string) *Resolver {
	if dbPath == "" {
		return &Resolver{}
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, location enrichment disabled", "path", dbPath, "error", err)
		return &Resolver{}
	}
	slog.Info("geoip: loaded database", "path", dbPath, "type", db.Metadata.DatabaseType)
	return &Resolver{db: db}
}

func (r *Resolver) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *Resolver) Lookup(ipStr string) Location {
	if !r.Enabled() || ipStr == "" {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return Location{}
	}
	var rec record
	if err := r.db.Lookup(ip, &rec); err != nil {
		slog.Debug("geoip: lookup failed", "ip", ipStr, "error", err)
		return Location{}
	}
	return Location{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r.Enabled() {
		return r.db.Close()
	}
	return nil
}
