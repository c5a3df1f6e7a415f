// Package config loads named diagnostic-session presets — arbitration IDs,
// separation times, and the channel protocol/bitrate to open them with —
// from an INI file, so operators juggling several ECUs don't hand-type
// arbitration IDs every session.
package config

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/canyonero/canlink/pkg/pdu"
)

// Preset is one named diagnostic-session configuration: which protocol and
// bitrate to open the channel with, and the arbitration/separation times
// to apply once it's open.
type Preset struct {
	Name        string
	Protocol    pdu.ChannelProtocol
	Bitrate     uint32
	DataBitrate uint32 // 0 unless Protocol is an FD variant
	Arbitration pdu.Arbitration
	Separation  pdu.SeparationTimes
}

// IsFD reports whether this preset opens a CAN-FD channel.
func (p Preset) IsFD() bool {
	return p.Protocol == pdu.ProtocolRawFD || p.Protocol == pdu.ProtocolISOTPFD
}

var sectionNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

var protocolByName = map[string]pdu.ChannelProtocol{
	"raw":         pdu.ProtocolRaw,
	"isotp":       pdu.ProtocolISOTP,
	"kline":       pdu.ProtocolKLine,
	"rawfd":       pdu.ProtocolRawFD,
	"isotpfd":     pdu.ProtocolISOTPFD,
	"rawwithfc":   pdu.ProtocolRawWithFC,
	"enet":        pdu.ProtocolENET,
}

// LoadFile loads presets from a file path on disk.
func LoadFile(path string) (map[string]Preset, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return parsePresets(f)
}

// LoadData loads presets from an in-memory INI document, for embedding
// presets or loading them over a transport instead of from local disk.
func LoadData(data []byte) (map[string]Preset, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("config: load preset data: %w", err)
	}
	return parsePresets(f)
}

func parsePresets(f *ini.File) (map[string]Preset, error) {
	presets := make(map[string]Preset)
	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || !sectionNameRegexp.MatchString(name) {
			continue
		}
		preset, err := parseSection(name, section)
		if err != nil {
			return nil, fmt.Errorf("config: section %q: %w", name, err)
		}
		presets[name] = preset
	}
	return presets, nil
}

func parseSection(name string, section *ini.Section) (Preset, error) {
	protoName := section.Key("Protocol").String()
	proto, ok := protocolByName[protoName]
	if !ok {
		return Preset{}, fmt.Errorf("unknown protocol %q", protoName)
	}

	bitrate, err := section.Key("Bitrate").Uint()
	if err != nil {
		return Preset{}, fmt.Errorf("Bitrate: %w", err)
	}

	var dataBitrate uint32
	if section.HasKey("DataBitrate") {
		v, err := section.Key("DataBitrate").Uint()
		if err != nil {
			return Preset{}, fmt.Errorf("DataBitrate: %w", err)
		}
		dataBitrate = uint32(v)
	}

	arb, err := parseArbitrationKeys(section)
	if err != nil {
		return Preset{}, err
	}

	rx, err := parseMicros(section, "RXSeparationMicros")
	if err != nil {
		return Preset{}, err
	}
	tx, err := parseMicros(section, "TXSeparationMicros")
	if err != nil {
		return Preset{}, err
	}
	if _, ok := pdu.MicrosToCode(rx); !ok {
		return Preset{}, fmt.Errorf("RXSeparationMicros %d has no wire representation", rx)
	}
	if _, ok := pdu.MicrosToCode(tx); !ok {
		return Preset{}, fmt.Errorf("TXSeparationMicros %d has no wire representation", tx)
	}

	return Preset{
		Name:        name,
		Protocol:    proto,
		Bitrate:     uint32(bitrate),
		DataBitrate: dataBitrate,
		Arbitration: arb,
		Separation:  pdu.SeparationTimes{RXMicros: rx, TXMicros: tx},
	}, nil
}

func parseArbitrationKeys(section *ini.Section) (pdu.Arbitration, error) {
	request, err := parseHexUint32(section, "RequestID", 0)
	if err != nil {
		return pdu.Arbitration{}, err
	}
	replyPattern, err := parseHexUint32(section, "ReplyPattern", 0)
	if err != nil {
		return pdu.Arbitration{}, err
	}
	replyMask, err := parseHexUint32(section, "ReplyMask", 0xFFFFFFFF)
	if err != nil {
		return pdu.Arbitration{}, err
	}
	requestExt, err := parseUint8(section, "RequestExtension", 0)
	if err != nil {
		return pdu.Arbitration{}, err
	}
	replyExt, err := parseUint8(section, "ReplyExtension", 0)
	if err != nil {
		return pdu.Arbitration{}, err
	}
	return pdu.Arbitration{
		Request:          request,
		RequestExtension: requestExt,
		ReplyPattern:     replyPattern,
		ReplyMask:        replyMask,
		ReplyExtension:   replyExt,
	}, nil
}

func parseHexUint32(section *ini.Section, key string, defaultValue uint32) (uint32, error) {
	if !section.HasKey(key) {
		return defaultValue, nil
	}
	v, err := strconv.ParseUint(section.Key(key).String(), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(v), nil
}

func parseUint8(section *ini.Section, key string, defaultValue uint8) (uint8, error) {
	if !section.HasKey(key) {
		return defaultValue, nil
	}
	v, err := strconv.ParseUint(section.Key(key).String(), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint8(v), nil
}

func parseMicros(section *ini.Section, key string) (uint32, error) {
	if !section.HasKey(key) {
		return 0, nil
	}
	v, err := section.Key(key).Uint()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(v), nil
}
