package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/asu-crypto/mario/coordinator"
	"github.com/asu-crypto/mario/params"
	"github.com/asu-crypto/mario/prof"
	"github.com/asu-crypto/mario/protocol"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// stages plotted, in display order.
var stages = []string{
	"client.Encrypt",
	"aggregator.CloseAndVerify",
	"aggregator.Aggregate",
	"threshold.PartialDecrypt",
	"threshold.Collect",
	"coordinator.Run",
}

type sweepRow struct {
	Preset  string             `json:"preset"`
	Clients int                `json:"clients"`
	Servers int                `json:"servers"`
	Thresh  int                `json:"threshold"`
	MeanMS  map[string]float64 `json:"meanMS"`
	Error   string             `json:"error,omitempty"`
}

func main() {
	paramsPath := flag.String("params", params.DefaultPath, "parameter file")
	preset := flag.String("preset", "test", "parameter preset")
	clientsSpec := flag.String("clients", "1,2,4,8", "comma-separated client counts")
	servers := flag.Int("servers", 3, "number of decryption servers")
	threshold := flag.Int("threshold", 2, "decryption threshold")
	workers := flag.Int("workers", 4, "verification workers")
	outPath := flag.String("out", "aggsweep.html", "output HTML file")
	jsonPath := flag.String("json", "", "optional JSONL output of the sweep rows")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	p, err := params.LoadOrPreset(*paramsPath, *preset)
	if err != nil {
		log.Fatal().Err(err).Msg("load parameters")
	}
	counts, err := parseCounts(*clientsSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("parse -clients")
	}

	var rows []sweepRow
	for _, n := range counts {
		row := runOnce(p, n, *servers, *threshold, *workers)
		rows = append(rows, row)
		ev := log.Info().Int("clients", n)
		for _, st := range stages {
			ev = ev.Float64(st, row.MeanMS[st])
		}
		ev.Msg("sweep point")
	}

	if *jsonPath != "" {
		if err := writeJSONL(*jsonPath, rows); err != nil {
			log.Fatal().Err(err).Msg("write json")
		}
	}
	if err := render(*outPath, p.Name, rows); err != nil {
		log.Fatal().Err(err).Msg("render")
	}
	log.Info().Str("out", *outPath).Msg("chart written")
}

func runOnce(p params.Params, clients, servers, threshold, workers int) sweepRow {
	row := sweepRow{Preset: p.Name, Clients: clients, Servers: servers, Thresh: threshold, MeanMS: make(map[string]float64)}
	timings := prof.NewRecorder()
	coord, err := coordinator.New(coordinator.Config{Params: p, Servers: servers, Threshold: threshold, Workers: workers, Logger: zerolog.Nop(), Profiler: timings})
	if err != nil {
		row.Error = err.Error()
		return row
	}
	inputs := make(map[protocol.ClientID][]int64, clients)
	for i := 0; i < clients; i++ {
		v := make([]int64, p.N())
		for j := range v {
			v[j] = int64(i+j) % (p.InputBound + 1)
		}
		inputs[protocol.ClientID(fmt.Sprintf("c%03d", i))] = v
	}
	if _, err := coord.Run(context.Background(), inputs); err != nil {
		row.Error = err.Error()
	}
	for _, st := range prof.Summarize(timings.Snapshot()) {
		row.MeanMS[st.Label] = float64(st.Mean.Microseconds()) / 1000
	}
	return row
}

func render(path, preset string, rows []sweepRow) error {
	page := components.NewPage().SetPageTitle("Aggregation timings")
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Mean stage time vs. clients", Subtitle: "preset " + preset}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "clients"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms", Type: "value"}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{Show: opts.Bool(true)},
			},
		}),
	)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Clients < rows[j].Clients })
	xs := make([]string, len(rows))
	for i, r := range rows {
		xs[i] = strconv.Itoa(r.Clients)
	}
	line.SetXAxis(xs)
	for _, st := range stages {
		data := make([]opts.LineData, len(rows))
		for i, r := range rows {
			data[i] = opts.LineData{Value: r.MeanMS[st]}
		}
		line.AddSeries(st, data)
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	page.AddCharts(line)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func writeJSONL(path string, rows []sweepRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func parseCounts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("client count %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
