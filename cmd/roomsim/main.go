// Command roomsim runs the crowd walker: a room of actors that wander,
// pause, and strike up conversations, observable over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/api"
	"github.com/talgya/mini-room/internal/config"
	"github.com/talgya/mini-room/internal/engine"
	"github.com/talgya/mini-room/internal/entropy"
	"github.com/talgya/mini-room/internal/persistence"
	"github.com/talgya/mini-room/internal/phi"
	"github.com/talgya/mini-room/internal/world"
)

// framesKept bounds the replay archive: one frame per second for an hour.
const framesKept = 3600

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("roomsim: crowd walker")
	slog.Info("tuning constants",
		"phi", phi.Phi,
		"agnosis", fmt.Sprintf("%.5f", phi.Agnosis),
		"matter", fmt.Sprintf("%.5f", phi.Matter),
		"growth_angle", fmt.Sprintf("%.3f°", phi.GrowthAngle),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Configuration ─────────────────────────────────────────────────
	sc, err := config.FromEnv(os.Getenv)
	if err != nil {
		slog.Error("failed to load scenario", "error", err)
		os.Exit(1)
	}
	simCfg, err := sc.EngineConfig()
	if err != nil {
		slog.Error("invalid scenario", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(sc.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", sc.DBPath)

	// ── Load or Generate Room State ───────────────────────────────────
	var (
		room      *world.Room
		actors    []*agents.Actor
		startTick uint64
		runID     string
		seed      = sc.Seed
	)

	if db.HasWorldState() {
		slog.Info("found saved room state, loading...")

		room, err = db.LoadRoom()
		if err != nil {
			slog.Error("failed to load room", "error", err)
			os.Exit(1)
		}
		actors, err = db.LoadActors()
		if err != nil {
			slog.Error("failed to load actors", "error", err)
			os.Exit(1)
		}
		startTick = db.LastTick()
		runID, _ = db.GetMeta(persistence.MetaRunID)
		if raw, err := db.GetMeta(persistence.MetaSeed); err == nil {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				seed = v
			}
		}

		slog.Info("room state restored",
			"actors", len(actors),
			"tick", startTick,
			"sim_time", engine.SimTime(startTick, sc.FPS),
			"run_id", runID,
		)
	} else {
		slog.Info("no saved state found, setting up a new room...")

		if seed == 0 {
			seed = entropy.Seed(ctx, entropy.NewClient(sc.RandomOrgKey))
		}
		sc.Seed = seed

		room, err = sc.BuildRoom()
		if err != nil {
			slog.Error("failed to build room", "error", err)
			os.Exit(1)
		}
		seats, err := sc.BuildSeats(room, entropy.Stream(seed, "seats"))
		if err != nil {
			slog.Error("failed to place actors", "error", err)
			os.Exit(1)
		}
		actors = agents.NewSpawner(entropy.Stream(seed, "roster"), simCfg.Tuning).SpawnRoster(seats)

		for _, a := range actors {
			slog.Info("actor",
				"id", a.ID,
				"name", a.Name,
				"personality", a.Personality,
				"position", a.Position,
				"speed", fmt.Sprintf("%.4f", a.Speed),
			)
		}
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	slog.Info("room ready",
		"room", room,
		"walkable", fmt.Sprintf("%.0f%%", 100*room.WalkableArea(0.25)),
		"actors", len(actors),
		"seed", seed,
		"collision", simCfg.Collision,
	)

	// ── Simulation ────────────────────────────────────────────────────
	// The walk stream restarts on restore; the room state itself carries over.
	sim, err := engine.NewSimulation(room, actors, entropy.Stream(seed, "walk"), simCfg)
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}
	sim.SetTick(startTick)

	// Save on fresh setup only (loaded rooms are already saved).
	if startTick == 0 {
		if err := saveFresh(db, sim, runID, seed); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	eng := engine.NewEngine(sc.FPS)
	eng.SetTick(startTick)
	hub := api.NewHub()

	// Wire frame callbacks.
	eng.OnFrame = func(tick uint64, dt float64) {
		sim.Step(dt)
		if tick%uint64(sc.StreamEvery) == 0 {
			hub.Broadcast(sim.Frame())
		}
	}
	eng.OnSecond = func(tick uint64) {
		if err := db.SaveFrame(runID, sim.Frame()); err != nil {
			slog.Error("frame archive failed", "tick", tick, "error", err)
		}
	}
	eng.OnMinute = func(tick uint64) {
		if err := db.SaveWorldState(sim, runID); err != nil {
			slog.Error("periodic save failed", "error", err)
		}
		if n, err := db.PruneFrames(runID, framesKept); err != nil {
			slog.Error("frame prune failed", "error", err)
		} else if n > 0 {
			slog.Debug("frames pruned", "count", n)
		}
		report(sim, hub, sc.DBPath, tick, sc.FPS)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if sc.AdminKey == "" {
		slog.Warn("ROOMSIM_ADMIN_KEY not set; admin POST endpoints will be disabled")
	}
	if sc.RelayKey == "" {
		slog.Warn("ROOMSIM_RELAY_KEY not set; the frame stream is open to anyone")
	}

	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		Hub:         hub,
		Port:        sc.Port,
		RunID:       runID,
		AdminKey:    sc.AdminKey,
		RelayKey:    sc.RelayKey,
		CORSOrigins: sc.CORSOrigins,
	}
	httpServer := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	fmt.Printf("\nThe room is open: %d people, %.0f x %.0f floor.\n", len(actors), room.Bounds.Width(), room.Bounds.Depth())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", sc.Port)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick, sc.FPS))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim, runID); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. Room state saved.")
}

// saveFresh stores everything a restart needs to pick the room back up.
func saveFresh(db *persistence.DB, sim *engine.Simulation, runID string, seed int64) error {
	if err := db.SaveRoom(sim.Room()); err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	if err := db.SaveMeta(persistence.MetaSeed, strconv.FormatInt(seed, 10)); err != nil {
		return fmt.Errorf("save seed: %w", err)
	}
	return db.SaveWorldState(sim, runID)
}

// report logs a once-a-minute summary of the room.
func report(sim *engine.Simulation, hub *api.Hub, dbPath string, tick uint64, fps int) {
	st := sim.Stats()
	attrs := []any{
		"sim_time", engine.SimTime(tick, fps),
		"ticks", humanize.Comma(int64(tick)),
		"moving", st.Moving,
		"paused", st.Paused,
		"conversing", st.Conversing,
		"walked", humanize.FormatFloat("#,###.##", st.DistanceWalked),
		"departures", humanize.Comma(int64(st.Departures)),
		"blocked", humanize.Comma(int64(st.BlockedSteps)),
		"conversations", humanize.Comma(int64(st.Conversations)),
		"stream_clients", hub.Subscribers(),
		"frames_dropped", humanize.Comma(int64(hub.Dropped())),
	}
	if fi, err := os.Stat(dbPath); err == nil {
		attrs = append(attrs, "db_size", humanize.Bytes(uint64(fi.Size())))
	}
	slog.Info("room report", attrs...)
}
