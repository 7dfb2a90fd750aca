package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/config"
	"github.com/hackgods/vetclinic-scheduling/internal/db"
	"github.com/hackgods/vetclinic-scheduling/internal/logging"
	"github.com/hackgods/vetclinic-scheduling/internal/schedule"
)

var log = logging.New("dev", "info")

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	SlotsRatio     float64
	ReadRatio      float64
	EmergencyRatio float64
	DaysAhead      int
	ClientLimit    int
	PostgresDSN    string
}

type owner struct {
	ClientID uuid.UUID
	PetID    uuid.UUID
}

type DataPool struct {
	Vets         []uuid.UUID
	Owners       []owner
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking   OperationMetrics
	Slots     OperationMetrics
	ReadByID  OperationMetrics
	Emergency OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.Info("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.WithFields(logrus.Fields{
		"duration":  cfg.Duration,
		"workers":   cfg.Workers,
		"booking":   cfg.BookingRatio,
		"slots":     cfg.SlotsRatio,
		"read":      cfg.ReadRatio,
		"emergency": cfg.EmergencyRatio,
	}).Info("config")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.WithError(err).Fatal("load data pool")
	}
	log.WithFields(logrus.Fields{"vets": len(dataPool.Vets), "owners": len(dataPool.Owners)}).Info("data loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()

	auditCtx, auditCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer auditCancel()
	overlaps, err := auditOverlaps(auditCtx, pgPool)
	if err != nil {
		log.WithError(err).Fatal("overlap audit")
	}
	if overlaps > 0 {
		log.WithField("overlaps", overlaps).Fatal("double bookings detected")
	}
	log.Info("no overlapping active appointments found")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.5),
		SlotsRatio:     getFloat("SIM_SLOTS_RATIO", 0.25),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.24),
		EmergencyRatio: getFloat("SIM_EMERGENCY_RATIO", 0.01),
		DaysAhead:      getInt("SIM_DAYS_AHEAD", 5),
		ClientLimit:    getInt("SIM_CLIENT_LIMIT", 1000),
		PostgresDSN:    baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.SlotsRatio + cfg.ReadRatio + cfg.EmergencyRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.SlotsRatio /= total
		cfg.ReadRatio /= total
		cfg.EmergencyRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM staff WHERE active AND role = 'veterinarian'`)
	if err != nil {
		return nil, fmt.Errorf("load vets: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Vets = append(dataPool.Vets, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT owner_id, id FROM pets LIMIT $1`, cfg.ClientLimit)
	if err != nil {
		return nil, fmt.Errorf("load pets: %w", err)
	}
	for rows.Next() {
		var o owner
		if err := rows.Scan(&o.ClientID, &o.PetID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Owners = append(dataPool.Owners, o)
	}
	rows.Close()

	if len(dataPool.Vets) == 0 {
		return nil, fmt.Errorf("no veterinarians loaded")
	}
	if len(dataPool.Owners) == 0 {
		return nil, fmt.Errorf("no pets loaded")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.WithFields(logrus.Fields{"duration": s.config.Duration, "workers": s.config.Workers}).Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.SlotsRatio:
				s.doSlots(ctx, rng)
			case r < s.config.BookingRatio+s.config.SlotsRatio+s.config.ReadRatio:
				s.doReadByID(ctx, rng)
			default:
				s.doEmergency(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format(schedule.DateLayout)
}

func (s *Simulator) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *Simulator) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

// doBooking picks a random half-hour start so that concurrent workers collide often.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	vet := s.pool.Vets[rng.Intn(len(s.pool.Vets))]
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	start := schedule.To12h(8*60 + 30*rng.Intn(20))

	began := time.Now()
	resp, err := s.post(ctx, "/appointments", map[string]any{
		"client_id": o.ClientID.String(),
		"pet_id":    o.PetID.String(),
		"staff_id":  vet.String(),
		"date":      s.randomDate(rng),
		"time":      start,
		"type":      "CHECKUP",
		"reason":    "simulated visit",
	})
	latency := time.Since(began)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddAppointment(created.ID)
			}
		case http.StatusConflict:
			conflict = true
		case http.StatusBadRequest:
			// outside the vet's window; expected for random starts
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	vet := s.pool.Vets[rng.Intn(len(s.pool.Vets))]

	began := time.Now()
	resp, err := s.get(ctx, fmt.Sprintf("/staff/%s/slots?date=%s&duration=%d", vet, s.randomDate(rng), []int{30, 60}[rng.Intn(2)]))
	latency := time.Since(began)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.Slots.Record(latency, success, false)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.get(ctx, "/appointments/"+id.String())
	latency := time.Since(began)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ReadByID.Record(latency, success, false)
}

func (s *Simulator) doEmergency(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Owners[rng.Intn(len(s.pool.Owners))]

	began := time.Now()
	resp, err := s.post(ctx, "/emergencies", map[string]any{
		"client_id":   o.ClientID.String(),
		"pet_id":      o.PetID.String(),
		"description": "simulated emergency",
	})
	latency := time.Since(began)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
		conflict = resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusServiceUnavailable
	}
	s.metrics.Emergency.Record(latency, success, conflict)
}

// auditOverlaps counts pairs of active appointments that share staff and date and overlap in time.
func auditOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	rows, err := pool.Query(ctx, `
		SELECT staff_id, date, time, duration_minutes
		FROM appointments
		WHERE status NOT IN ('cancelled', 'no_show')
		ORDER BY staff_id, date
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct {
		staff uuid.UUID
		date  time.Time
	}
	byDay := map[key][]schedule.Interval{}
	for rows.Next() {
		var (
			k        key
			at       string
			duration int
		)
		if err := rows.Scan(&k.staff, &k.date, &at, &duration); err != nil {
			return 0, err
		}
		m, err := schedule.ToMinutes(at)
		if err != nil {
			continue
		}
		byDay[k] = append(byDay[k], schedule.Interval{Start: m, Duration: duration})
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	overlaps := 0
	for _, ivs := range byDay {
		for i := range ivs {
			if _, clash := schedule.FirstOverlap(ivs[i], ivs[i+1:]); clash {
				overlaps++
			}
		}
	}
	return overlaps, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Slot lookup", &s.metrics.Slots)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Emergency", &s.metrics.Emergency)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
