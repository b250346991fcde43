// Package sbs1 parses the BaseStation ("SBS-1") CSV line format: one
// MSG,... record per decoded field, the same 22-column layout dump1090's
// --net-sbs-port and kin comparable tools emit.
package sbs1

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Frame is one parsed BaseStation CSV record.
type Frame struct {
	Raw string

	TransmissionType int
	icao             uint32
	IcaoHex          string

	Generated time.Time
	Logged    time.Time

	Callsign    string
	HasCallsign bool

	Altitude    int32
	HasAltitude bool

	GroundSpeed float64
	Track       float64
	HasVelocity bool

	Position    orb.Point
	HasPosition bool

	VerticalRate int32
	HasVertRate  bool

	Squawk    uint32
	HasSquawk bool

	Alert     bool
	Emergency bool
	Spi       bool

	OnGround    bool
	HasOnGround bool
}

// Icao satisfies tracker.Frame.
func (f *Frame) Icao() uint32 { return f.icao }

const dateLayout = "2006/01/02"
const timeLayout = "15:04:05.000"

// ParseLine parses one BaseStation CSV record:
//
//	MSG,transmission_type,session_id,aircraft_id,hex_ident,flight_id,
//	date_gen,time_gen,date_log,time_log,callsign,altitude,ground_speed,
//	track,lat,lon,vertical_rate,squawk,alert,emergency,spi,is_on_ground
func ParseLine(line string) (*Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, ",")
	if len(fields) < 22 {
		return nil, fmt.Errorf("sbs1: expected 22 fields, got %d", len(fields))
	}
	if fields[0] != "MSG" {
		return nil, fmt.Errorf("sbs1: unsupported record type %q", fields[0])
	}

	f := &Frame{Raw: line}

	if t, err := strconv.Atoi(fields[1]); err == nil {
		f.TransmissionType = t
	}

	icao, err := strconv.ParseUint(fields[4], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("sbs1: bad hex_ident %q: %w", fields[4], err)
	}
	f.icao = uint32(icao)
	f.IcaoHex = strings.ToUpper(fields[4])

	f.Generated = parseDateTime(fields[6], fields[7])
	f.Logged = parseDateTime(fields[8], fields[9])

	if cs := strings.TrimSpace(fields[10]); cs != "" {
		f.Callsign = cs
		f.HasCallsign = true
	}
	if alt, err := strconv.ParseFloat(fields[11], 64); err == nil {
		f.Altitude = int32(alt)
		f.HasAltitude = true
	}

	speed, speedErr := strconv.ParseFloat(fields[12], 64)
	track, trackErr := strconv.ParseFloat(fields[13], 64)
	if speedErr == nil && trackErr == nil {
		f.GroundSpeed = speed
		f.Track = track
		f.HasVelocity = true
	}

	lat, latErr := strconv.ParseFloat(fields[14], 64)
	lon, lonErr := strconv.ParseFloat(fields[15], 64)
	if latErr == nil && lonErr == nil && (lat != 0 || lon != 0) {
		f.Position = orb.Point{lon, lat}
		f.HasPosition = true
	}

	if vr, err := strconv.ParseFloat(fields[16], 64); err == nil {
		f.VerticalRate = int32(vr)
		f.HasVertRate = true
	}
	if sq, err := strconv.ParseUint(fields[17], 10, 32); err == nil {
		f.Squawk = uint32(sq)
		f.HasSquawk = true
	}

	f.Alert = fields[18] == "-1" || fields[18] == "1"
	f.Emergency = fields[19] == "-1" || fields[19] == "1"
	f.Spi = fields[20] == "-1" || fields[20] == "1"
	if fields[21] != "" {
		f.OnGround = fields[21] == "-1" || fields[21] == "1"
		f.HasOnGround = true
	}

	return f, nil
}

func parseDateTime(date, clock string) time.Time {
	t, err := time.Parse(dateLayout+" "+timeLayout, date+" "+clock)
	if err != nil {
		return time.Time{}
	}
	return t
}
