package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

type DfStatus int

const (
	DfUnknown DfStatus = iota
	Df
	NonDf
)

func (s DfStatus) String() string {
	switch s {
	case Df:
		return "df"
	case NonDf:
		return "non-df"
	default:
		return "unknown"
	}
}

// ParseDfStatus accepts only the two polarities that may trigger enforcement.
func ParseDfStatus(s string) (DfStatus, bool) {
	switch s {
	case "df":
		return Df, true
	case "non-df":
		return NonDf, true
	}
	return DfUnknown, false
}

// EthernetSegmentRecord is one access port of a multi-homed Ethernet Segment
// as reported by the control plane. Records are rebuilt wholesale on every
// query and never merged.
type EthernetSegmentRecord struct {
	Interface string
	Flags     []string
	Vteps     []string
	DfStatus  DfStatus
}

type ReportedStateMap map[string]EthernetSegmentRecord

const (
	dfStatusFilePrefix = "evpn_df_status_"
	dfStatusFileSuffix = ".json"
)

type dfStatusFile struct {
	Interface string `json:"interface"`
	DfStatus  string `json:"df_status"`
}

// ScanDfStatusFiles collects per-interface DF status from the files FRR's
// DF-election hook drops into dir. Files that vanish, fail to parse, change
// between the two stable reads or carry an unexpected status are omitted.
func ScanDfStatusFiles(dir string, reader *StableReader) map[string]DfStatus {
	status := make(map[string]DfStatus)

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("status-scan: failed to list status directory")
		return status
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, dfStatusFilePrefix) || !strings.HasSuffix(name, dfStatusFileSuffix) {
			continue
		}

		var file dfStatusFile
		if !reader.ReadJSON(filepath.Join(dir, name), &file) {
			continue
		}

		dfStatus, ok := ParseDfStatus(file.DfStatus)
		if !ok || file.Interface == "" {
			log.Debug().Str("file", name).Str("df_status", file.DfStatus).Msg("status-scan: ignoring status file")
			continue
		}
		status[file.Interface] = dfStatus
	}

	return status
}
