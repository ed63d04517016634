// Command swarm connects a number of bot players to a running relay over
// WebSocket and drives them on random walks. Each bot moves every tick and
// shoots now and then, and the tool prints how many events of each kind
// the bots sent and received. Use it to load-test a relay or to watch
// several players in a browser client without recruiting friends.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/shooter-relay/game/engine"
	"github.com/wricardo/shooter-relay/protocol"
)

// swarmConfig holds the swarm settings
type swarmConfig struct {
	URL       string
	Bots      int
	Duration  time.Duration
	Interval  time.Duration
	Encoding  string
	ShootRate float64
	Extent    float64
}

// Report counts what the bots did
type Report struct {
	Connected int
	Sent      int
	Received  map[protocol.Kind]int
}

func main() {
	cmd := &cli.Command{
		Name:  "swarm",
		Usage: "Drive bot players against a running shooter relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "Relay WebSocket URL", Sources: cli.EnvVars("SWARM_URL")},
			&cli.Int64Flag{Name: "bots", Value: 10, Usage: "Number of bots"},
			&cli.DurationFlag{Name: "duration", Value: 30 * time.Second, Usage: "How long the bots play"},
			&cli.DurationFlag{Name: "interval", Value: 100 * time.Millisecond, Usage: "Time between movements"},
			&cli.StringFlag{Name: "encoding", Value: "json", Usage: "Wire encoding (json or msgpack)"},
			&cli.Int64Flag{Name: "shoot-percent", Value: 10, Usage: "Chance in percent of shooting on each tick"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := swarmConfig{
				URL:       cmd.String("url"),
				Bots:      int(cmd.Int64("bots")),
				Duration:  cmd.Duration("duration"),
				Interval:  cmd.Duration("interval"),
				Encoding:  cmd.String("encoding"),
				ShootRate: float64(cmd.Int64("shoot-percent")) / 100,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runSwarm(ctx, cfg)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// runSwarm connects cfg.Bots bots and lets them play until cfg.Duration
// elapses or ctx is cancelled
func runSwarm(ctx context.Context, cfg swarmConfig) (Report, error) {
	codec, err := protocol.CodecByName(cfg.Encoding)
	if err != nil {
		return Report{}, err
	}
	target, err := dialURL(cfg.URL, codec)
	if err != nil {
		return Report{}, err
	}
	if cfg.Bots <= 0 {
		return Report{}, fmt.Errorf("bots must be positive, got %d", cfg.Bots)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.Extent <= 0 {
		cfg.Extent = 50
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Received: make(map[protocol.Kind]int)}
	)

	for i := 0; i < cfg.Bots; i++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
		if err != nil {
			log.Printf("Bot %d failed to connect: %v", i, err)
			continue
		}

		b := &bot{
			conn:   conn,
			codec:  codec,
			rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(i))),
			extent: cfg.Extent,
		}

		mu.Lock()
		report.Connected++
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			sent, received := b.play(ctx, cfg.Interval, cfg.ShootRate)

			mu.Lock()
			defer mu.Unlock()
			report.Sent += sent
			for kind, n := range received {
				report.Received[kind] += n
			}
		}()
	}

	wg.Wait()
	if report.Connected == 0 {
		return report, fmt.Errorf("no bot could connect to %s", target)
	}
	return report, nil
}

// dialURL adds the encoding query parameter for non-JSON codecs
func dialURL(raw string, codec protocol.Codec) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("url must use ws or wss, got %q", u.Scheme)
	}
	if codec.Name() != "json" {
		q := u.Query()
		q.Set("encoding", codec.Name())
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func printReport(r Report) {
	fmt.Printf("Bots connected: %d\n", r.Connected)
	fmt.Printf("Events sent: %d\n", r.Sent)
	fmt.Println("Events received:")

	kinds := make([]string, 0, len(r.Received))
	for kind := range r.Received {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  %-20s %d\n", kind, r.Received[protocol.Kind(kind)])
	}
}

// bot is one simulated player
type bot struct {
	conn     *websocket.Conn
	codec    protocol.Codec
	rng      *rand.Rand
	extent   float64
	position engine.Vector
	heading  float64
}

// play runs the bot until ctx is done and returns how many events it sent
// and how many of each kind it received
func (b *bot) play(ctx context.Context, interval time.Duration, shootRate float64) (int, map[protocol.Kind]int) {
	received := make(map[protocol.Kind]int)
	readDone := make(chan struct{})

	go func() {
		defer close(readDone)
		for {
			_, frame, err := b.conn.ReadMessage()
			if err != nil {
				return
			}
			kind, _, err := b.codec.Decode(frame)
			if err != nil {
				continue
			}
			received[kind]++
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-readDone:
			break loop
		case <-ticker.C:
			if err := b.send(protocol.KindPlayerMovement, b.step()); err != nil {
				break loop
			}
			sent++

			if b.rng.Float64() < shootRate {
				if err := b.send(protocol.KindPlayerShoot, b.shot()); err != nil {
					break loop
				}
				sent++
			}
		}
	}

	b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
	}
	b.conn.Close()
	<-readDone

	return sent, received
}

func (b *bot) send(kind protocol.Kind, payload any) error {
	frame, err := b.codec.Encode(kind, payload)
	if err != nil {
		return err
	}
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return b.conn.WriteMessage(b.codec.FrameType(), frame)
}

// step turns the bot a little and walks it one unit, bouncing off the
// edges of the spawn area
func (b *bot) step() protocol.Movement {
	b.heading += (b.rng.Float64() - 0.5) * 0.8

	next := engine.Vector{
		X: b.position.X + math.Sin(b.heading),
		Y: b.position.Y,
		Z: b.position.Z + math.Cos(b.heading),
	}
	if math.Abs(next.X) > b.extent || math.Abs(next.Z) > b.extent {
		b.heading += math.Pi
		next = b.position
	}
	b.position = next

	rotation := engine.Rotation{Y: b.heading}
	position := b.position
	return protocol.Movement{Position: &position, Rotation: &rotation}
}

func (b *bot) shot() protocol.Shoot {
	position := b.position
	direction := engine.Vector{X: math.Sin(b.heading), Y: 0, Z: math.Cos(b.heading)}
	return protocol.Shoot{Position: &position, Direction: &direction, Speed: 1}
}
