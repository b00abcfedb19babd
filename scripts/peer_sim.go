//go:build ignore

// Dev harness that impersonates a game simulation peer against a
// running relay. Run with: go run scripts/peer_sim.go -addr localhost:4242
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"
)

type snapshot struct {
	Phase            string    `json:"phase"`
	GameScore        float64   `json:"gameScore"`
	AvatarHealth     int       `json:"avatarHealthPoints"`
	AvatarMaxHealth  int       `json:"avatarMaxHealthPoints"`
	GameTick         int64     `json:"gameTick"`
	AvatarPosition   []float64 `json:"avatarPosition"`
	AvailableActions []string  `json:"availableActions"`
	GameWinner       string    `json:"gameWinner,omitempty"`
}

var legal = []string{"ACTION_UP", "ACTION_DOWN", "ACTION_LEFT", "ACTION_RIGHT", "ACTION_USE"}

func main() {
	addr := flag.String("addr", "localhost:4242", "relay peer address")
	ticks := flag.Int("ticks", 100, "ACT ticks per level")
	levels := flag.Int("levels", 2, "levels to play")
	tickRate := flag.Duration("tick-rate", 50*time.Millisecond, "delay between ticks")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	id := 0
	exchange := func(payload string) string {
		id++
		fmt.Fprintf(conn, "%d#%s\n", id, payload)
		reply, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("read reply: %v", err)
		}
		return reply
	}

	log.Printf("reply: %q", exchange("START"))

	for level := 0; level < *levels; level++ {
		snap := snapshot{
			Phase:            "INIT",
			AvatarHealth:     100,
			AvatarMaxHealth:  100,
			AvatarPosition:   []float64{0, 0},
			AvailableActions: legal,
		}
		log.Printf("level %d init: %q", level, exchange(marshal(snap)))

		for tick := 0; tick < *ticks; tick++ {
			snap.Phase = "ACT"
			snap.GameTick = int64(tick)
			snap.GameScore += rand.Float64()
			snap.AvatarPosition = []float64{rand.Float64() * 20, rand.Float64() * 20}
			start := time.Now()
			reply := exchange(marshal(snap))
			log.Printf("tick %d -> %q (%s)", tick, reply, time.Since(start))
			time.Sleep(*tickRate)
		}

		snap.Phase = "END"
		snap.GameWinner = "AVATAR"
		log.Printf("level %d end: %q", level, exchange(marshal(snap)))
	}

	id++
	fmt.Fprintf(conn, "%d#FINISH\n", id)
	log.Println("done")
}

func marshal(s snapshot) string {
	b, err := json.Marshal(s)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	return string(b)
}
