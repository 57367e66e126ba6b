// Package monitoring serves the state of running kernels over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/sim/naming"
)

// Monitor turns a simulation into a server that reports the memory state of
// its kernels.
type Monitor struct {
	portNumber int
	metrics    http.Handler
	log        *zap.Logger

	kernelsLock sync.Mutex
	kernels     []*kernel.Kernel

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{log: zap.NewNop()}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random free port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.log.Warn("reserved monitor port, using a random port instead",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithMetrics serves h at /metrics.
func (m *Monitor) WithMetrics(h http.Handler) *Monitor {
	m.metrics = h
	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(log *zap.Logger) *Monitor {
	m.log = logging.OrNop(log)
	return m
}

// RegisterKernel registers a kernel to be monitored.
func (m *Monitor) RegisterKernel(k *kernel.Kernel) {
	m.kernelsLock.Lock()
	defer m.kernelsLock.Unlock()

	m.kernels = append(m.kernels, k)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_components", m.listComponents).Methods("GET")
	r.HandleFunc("/api/component/{name}", m.listComponentDetails).Methods("GET")
	r.HandleFunc("/api/field/{json}", m.listFieldValue).Methods("GET")
	r.HandleFunc("/api/stats", m.listStats).Methods("GET")
	r.HandleFunc("/api/stats/{name}", m.kernelStats).Methods("GET")
	r.HandleFunc("/api/dump/{name}", m.dump).Methods("GET")
	r.HandleFunc("/api/dump/{name}/frames", m.dumpFrames).Methods("GET")
	r.HandleFunc("/api/dump/{name}/pagetable/{pid:[0-9]+}", m.dumpPageTable).
		Methods("GET")
	r.HandleFunc("/api/tlb/{name}/flush", m.flushTLB).Methods("POST")
	r.HandleFunc("/api/progress", m.listProgressBars).Methods("GET")
	r.HandleFunc("/api/resource", m.listResources).Methods("GET")
	r.HandleFunc("/api/profile", m.collectProfile).Methods("GET")

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics)
	}

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitor listen: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.log.Info("monitoring simulation", zap.String("url", url))

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("monitor stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) snapshotKernels() []*kernel.Kernel {
	m.kernelsLock.Lock()
	defer m.kernelsLock.Unlock()

	return append([]*kernel.Kernel(nil), m.kernels...)
}

// components lists every kernel followed by the parts it is built from.
func (m *Monitor) components() []naming.Named {
	var comps []naming.Named

	for _, k := range m.snapshotKernels() {
		comps = append(comps, k, k.MMU(), k.TLB(), k.RAM())
		for _, dev := range k.SwapDevices() {
			comps = append(comps, dev)
		}
	}

	return comps
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	for _, c := range m.components() {
		names = append(names, c.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.log.Error("serialize component", zap.Error(err))
	}
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.log.Error("serialize field", zap.Error(err))
	}
}

type kernelStatsRsp struct {
	Name  string       `json:"name"`
	Stats kernel.Stats `json:"stats"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	rsp := []kernelStatsRsp{}
	for _, k := range m.snapshotKernels() {
		rsp = append(rsp, kernelStatsRsp{Name: k.Name(), Stats: k.Stats()})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) kernelStats(w http.ResponseWriter, r *http.Request) {
	k := m.findKernelOr404(w, mux.Vars(r)["name"])
	if k == nil {
		return
	}

	stats := k.Stats()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&stats)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		m.log.Error("serialize stats", zap.Error(err))
	}
}

func (m *Monitor) dump(w http.ResponseWriter, r *http.Request) {
	k := m.findKernelOr404(w, mux.Vars(r)["name"])
	if k == nil {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	k.Dump(w)
}

func (m *Monitor) dumpFrames(w http.ResponseWriter, r *http.Request) {
	k := m.findKernelOr404(w, mux.Vars(r)["name"])
	if k == nil {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	k.DumpFrames(w)
}

func (m *Monitor) dumpPageTable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	k := m.findKernelOr404(w, vars["name"])
	if k == nil {
		return
	}

	pid, err := strconv.ParseUint(vars["pid"], 10, 32)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	buf := new(bytes.Buffer)
	if err := k.DumpPageTable(buf, vm.PID(pid)); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type flushRsp struct {
	Flushed int `json:"flushed"`
}

func (m *Monitor) flushTLB(w http.ResponseWriter, r *http.Request) {
	k := m.findKernelOr404(w, mux.Vars(r)["name"])
	if k == nil {
		return
	}

	n := k.TLB().Len()
	k.TLB().Flush()

	m.log.Info("tlb flushed on request",
		zap.String("kernel", k.Name()), zap.Int("entries", n))
	m.writeJSON(w, flushRsp{Flushed: n})
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) naming.Named {
	for _, c := range m.components() {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) findKernelOr404(
	w http.ResponseWriter,
	name string,
) *kernel.Kernel {
	for _, k := range m.snapshotKernels() {
		if k.Name() == name {
			return k
		}
	}

	http.Error(w, "Kernel not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		sec, err := strconv.ParseFloat(s, 64)
		if err != nil || sec <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = time.Duration(sec * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.log.Warn("monitor response", zap.Error(err))
	}
}
