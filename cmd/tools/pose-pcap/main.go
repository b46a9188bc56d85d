// Command pose-pcap analyses a packet capture of the pose observation
// stream. It reports datagram rates, inter-packet gaps, and payload health,
// which is the first thing to check when the detector sees stale or missing
// keypoints in a live session.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/strike.report/internal/pose"
)

var (
	pcapFile = flag.String("pcap", "", "PCAP file to analyse")
	udpPort  = flag.Int("port", 9901, "UDP port carrying pose observations")
	asJSON   = flag.Bool("json", false, "Emit the report as JSON")
)

type observationPacket struct {
	Persons []pose.PersonObservation `json:"persons"`
}

// Report summarises one capture file.
type Report struct {
	File          string  `json:"file"`
	Packets       int     `json:"packets"`
	Malformed     int     `json:"malformed"`
	EmptyPersons  int     `json:"empty_persons"`
	MaxPersons    int     `json:"max_persons"`
	UsablePersons int     `json:"usable_persons"`
	DurationSecs  float64 `json:"duration_secs"`
	RateHz        float64 `json:"rate_hz"`
	GapP50Ms      float64 `json:"gap_p50_ms"`
	GapP95Ms      float64 `json:"gap_p95_ms"`
	GapMaxMs      float64 `json:"gap_max_ms"`
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("failed to read pcap header: %v", err)
	}

	report, err := analyse(r, uint16(*udpPort))
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}
	report.File = *pcapFile

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
		return
	}
	printReport(report)
}

func analyse(r *pcapgo.Reader, port uint16) (*Report, error) {
	rep := &Report{}
	var first, last time.Time
	var prev time.Time
	var gaps []float64

	for {
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet %d: %w", rep.Packets+1, err)
		}

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || uint16(udp.DstPort) != port {
			continue
		}

		rep.Packets++
		if first.IsZero() {
			first = ci.Timestamp
		}
		last = ci.Timestamp
		if !prev.IsZero() {
			gaps = append(gaps, float64(ci.Timestamp.Sub(prev))/float64(time.Millisecond))
		}
		prev = ci.Timestamp

		var pkt observationPacket
		if err := json.Unmarshal(udp.Payload, &pkt); err != nil {
			rep.Malformed++
			continue
		}
		if len(pkt.Persons) == 0 {
			rep.EmptyPersons++
		}
		if len(pkt.Persons) > rep.MaxPersons {
			rep.MaxPersons = len(pkt.Persons)
		}
		for _, p := range pkt.Persons {
			if p.HasUpperBody() {
				rep.UsablePersons++
			}
		}
	}

	if rep.Packets == 0 {
		return rep, nil
	}
	rep.DurationSecs = last.Sub(first).Seconds()
	if rep.DurationSecs > 0 {
		rep.RateHz = float64(rep.Packets) / rep.DurationSecs
	}
	if len(gaps) > 0 {
		sort.Float64s(gaps)
		rep.GapP50Ms = stat.Quantile(0.5, stat.Empirical, gaps, nil)
		rep.GapP95Ms = stat.Quantile(0.95, stat.Empirical, gaps, nil)
		rep.GapMaxMs = gaps[len(gaps)-1]
	}
	return rep, nil
}

func printReport(rep *Report) {
	fmt.Printf("capture:         %s\n", rep.File)
	fmt.Printf("packets:         %d (%.1f Hz over %.1fs)\n", rep.Packets, rep.RateHz, rep.DurationSecs)
	fmt.Printf("malformed:       %d\n", rep.Malformed)
	fmt.Printf("empty persons:   %d\n", rep.EmptyPersons)
	fmt.Printf("max persons:     %d\n", rep.MaxPersons)
	fmt.Printf("usable persons:  %d\n", rep.UsablePersons)
	fmt.Printf("gap p50/p95/max: %.1f / %.1f / %.1f ms\n", rep.GapP50Ms, rep.GapP95Ms, rep.GapMaxMs)
}
