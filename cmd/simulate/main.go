package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/api"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/logging"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

type SimConfig struct {
	APIBaseURL   string
	JWTSecret    string
	ClinicID     uuid.UUID
	ClinicOwner  string
	Date         string
	Bookings     int
	Workers      int
	ReadDuration time.Duration
}

// DataPool holds the appointments created during the booking burst.
type DataPool struct {
	mu           sync.RWMutex
	appointments []uuid.UUID
	patients     []string
}

func (dp *DataPool) AddAppointment(id uuid.UUID, patientID string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
	dp.patients = append(dp.patients, patientID)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, "", false
	}
	idx := rng.Intn(len(dp.appointments))
	return dp.appointments[idx], dp.patients[idx], true
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
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[minInt(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[minInt(len(latencies)*95/100, len(latencies)-1)]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking       OperationMetrics
	FullyBooked   int64
	ReadByID      OperationMetrics
	WaitTime      OperationMetrics
	NextAvailable OperationMetrics
}

type Simulator struct {
	config  SimConfig
	log     *zap.Logger
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	_ = godotenv.Load()

	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.String("clinic_id", cfg.ClinicID.String()),
		zap.String("date", cfg.Date),
		zap.Int("bookings", cfg.Bookings),
		zap.Int("workers", cfg.Workers))

	sim := &Simulator{
		config: cfg,
		log:    logger,
		pool:   &DataPool{},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	ctx := context.Background()
	sim.RunBookingBurst(ctx)

	verifyErr := sim.VerifyQueue(ctx)
	if verifyErr != nil {
		logger.Error("queue verification failed", zap.Error(verifyErr))
	} else {
		logger.Info("queue verification passed")
	}

	sim.RunReads(ctx)
	sim.PrintReport()

	if verifyErr != nil {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		ClinicOwner:  getEnv("SIM_CLINIC_OWNER", "clinic-user-001"),
		Date:         os.Getenv("SIM_DATE"),
		Bookings:     getInt("SIM_BOOKINGS", 50),
		Workers:      getInt("SIM_WORKERS", 10),
		ReadDuration: getDuration("SIM_READ_DURATION", 10*time.Second),
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required (set in .env or environment)")
	}
	id, err := uuid.Parse(os.Getenv("SIM_CLINIC_ID"))
	if err != nil {
		return cfg, fmt.Errorf("SIM_CLINIC_ID must be a clinic UUID: %w", err)
	}
	cfg.ClinicID = id

	if cfg.Date == "" {
		cfg.Date = schedule.FormatDate(time.Now().AddDate(0, 0, 1))
	}
	if _, err := schedule.ParseDate(cfg.Date); err != nil {
		return cfg, fmt.Errorf("SIM_DATE: %w", err)
	}
	if cfg.Workers <= 0 {
		return cfg, errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Bookings <= 0 {
		return cfg, errors.New("SIM_BOOKINGS must be > 0")
	}
	return cfg, nil
}

func (s *Simulator) token(userID string, role identity.Role) string {
	tok, err := identity.IssueToken(s.config.JWTSecret, userID, role, time.Hour)
	if err != nil {
		s.log.Fatal("issue token", zap.Error(err))
	}
	return tok
}

func (s *Simulator) do(ctx context.Context, method, path, tok string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// RunBookingBurst has every simulated patient book the same clinic day at once.
func (s *Simulator) RunBookingBurst(ctx context.Context) {
	s.log.Info("starting booking burst", zap.Int("bookings", s.config.Bookings), zap.Int("workers", s.config.Workers))

	patients := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for patientID := range patients {
				s.doBooking(ctx, patientID)
			}
		}()
	}

	for i := 0; i < s.config.Bookings; i++ {
		patients <- fmt.Sprintf("sim-patient-%05d", i+1)
	}
	close(patients)
	wg.Wait()

	s.log.Info("booking burst complete")
}

func (s *Simulator) doBooking(ctx context.Context, patientID string) {
	start := time.Now()
	status, body, err := s.do(ctx, http.MethodPost, "/appointments/book", s.token(patientID, identity.RolePatient),
		api.BookAppointmentRequest{ClinicID: s.config.ClinicID.String(), Date: s.config.Date})
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		switch status {
		case http.StatusCreated:
			var appt api.AppointmentResponse
			if json.Unmarshal(body, &appt) == nil && appt.ID != uuid.Nil {
				success = true
				s.pool.AddAppointment(appt.ID, patientID)
			}
		case http.StatusConflict:
			conflict = true
		case http.StatusBadRequest:
			var e api.ErrorResponse
			if json.Unmarshal(body, &e) == nil && e.Error.Code == "clinic_fully_booked" {
				atomic.AddInt64(&s.metrics.FullyBooked, 1)
				success = true
			}
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

// VerifyQueue reads the clinic queue back and checks that queue numbers are
// 1..N without gaps and that no two live appointments share a time.
func (s *Simulator) VerifyQueue(ctx context.Context) error {
	status, body, err := s.do(ctx, http.MethodGet, "/appointments/clinic/queue?date="+s.config.Date,
		s.token(s.config.ClinicOwner, identity.RoleClinic), nil)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("load queue: status %d: %s", status, body)
	}

	var queue api.DayQueueResponse
	if err := json.Unmarshal(body, &queue); err != nil {
		return fmt.Errorf("decode queue: %w", err)
	}
	if queue.ClinicID != s.config.ClinicID {
		return fmt.Errorf("SIM_CLINIC_OWNER owns clinic %s, not %s", queue.ClinicID, s.config.ClinicID)
	}

	times := make(map[schedule.Clock]uuid.UUID, len(queue.Appointments))
	for i, a := range queue.Appointments {
		if a.QueueNumber != i+1 {
			return fmt.Errorf("queue number gap: position %d holds number %d", i+1, a.QueueNumber)
		}
		if a.Status == "canceled" {
			continue
		}
		if other, dup := times[a.Time]; dup {
			return fmt.Errorf("appointments %s and %s share slot %s", other, a.ID, a.Time)
		}
		times[a.Time] = a.ID
	}

	created := len(s.pool.appointments)
	s.log.Info("queue checked",
		zap.Int("appointments", len(queue.Appointments)),
		zap.Int("created_by_simulation", created),
		zap.Int64("fully_booked", atomic.LoadInt64(&s.metrics.FullyBooked)))
	return nil
}

// RunReads mixes detail, wait-time and next-available reads for ReadDuration.
func (s *Simulator) RunReads(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ReadDuration)
	defer cancel()

	s.log.Info("starting reads", zap.Duration("duration", s.config.ReadDuration))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.readWorker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	s.log.Info("reads complete")
}

func (s *Simulator) readWorker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch rng.Intn(3) {
		case 0:
			s.doRead(ctx, rng, "", &s.metrics.ReadByID)
		case 1:
			s.doRead(ctx, rng, "/wait-time", &s.metrics.WaitTime)
		case 2:
			s.doNextAvailable(ctx)
		}
	}
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand, suffix string, om *OperationMetrics) {
	apptID, patientID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, _, err := s.do(ctx, http.MethodGet, "/appointments/"+apptID.String()+suffix, s.token(patientID, identity.RolePatient), nil)
	if ctx.Err() != nil {
		return
	}
	om.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doNextAvailable(ctx context.Context) {
	start := time.Now()
	path := fmt.Sprintf("/appointments/next-available?clinicId=%s&fromDate=%s", s.config.ClinicID, s.config.Date)
	status, _, err := s.do(ctx, http.MethodGet, path, s.token("sim-reader", identity.RolePatient), nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.NextAvailable.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Clinic: %s  Date: %s\n", s.config.ClinicID, s.config.Date)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Appointments created: %d  Fully booked answers: %d\n",
		len(s.pool.appointments), atomic.LoadInt64(&s.metrics.FullyBooked))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Wait time", &s.metrics.WaitTime)
	printOperationReport("Next available", &s.metrics.NextAvailable)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
