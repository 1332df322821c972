package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/worldgate/pkg/client"
	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/cbodonnell/worldgate/pkg/version"
)

const receiveTimeout = 10 * time.Second

func main() {
	gameAddr := flag.String("game-addr", "127.0.0.1:10001", "Game server address")
	apiURL := flag.String("api-url", "http://127.0.0.1:8080", "Account API base URL")
	name := flag.String("name", "", "Account name")
	password := flag.String("password", "", "Account password")
	userID := flag.Int("user", 0, "User to spawn (first user when 0)")
	walk := flag.Duration("walk", time.Second, "Interval between location updates once spawned")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel))
	log.Info("Starting worldgate client version %s", version.Get())

	if *name == "" || *password == "" {
		log.Error("-name and -password are required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *gameAddr, *apiURL, *name, *password, int32(*userID), *walk); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, gameAddr, apiURL, name, password string, userID int32, walk time.Duration) error {
	tables, err := staticdata.Default()
	if err != nil {
		return fmt.Errorf("failed to load static data: %w", err)
	}

	ticket, err := requestTicket(ctx, apiURL, name, password)
	if err != nil {
		return err
	}

	c, err := client.Dial(ctx, gameAddr, tables)
	if err != nil {
		return err
	}
	defer c.Close()
	log.Info("Connected to %s", gameAddr)

	if err := c.Send(messages.CLoginArbiter{AccountName: name, Ticket: ticket.Token}); err != nil {
		return err
	}
	p, err := c.Expect("S_LOGIN_ARBITER", receiveTimeout)
	if err != nil {
		return err
	}
	if !p.(*messages.SLoginArbiter).Success {
		return errors.New("login rejected")
	}
	p, err = c.Expect("S_GET_USER_LIST", receiveTimeout)
	if err != nil {
		return err
	}
	users := p.(*messages.SGetUserList).Users
	for _, u := range users {
		log.Info("User %d: %s level %d in zone %d", u.ID, u.Name, u.Level, u.ZoneID)
	}
	if len(users) == 0 {
		return errors.New("account has no users")
	}
	if userID == 0 {
		userID = users[0].ID
	}

	if err := c.Send(messages.CSelectUser{UserID: userID}); err != nil {
		return err
	}
	spawn, err := awaitSpawn(c)
	if err != nil {
		return err
	}
	log.Info("Spawned as entity %d at (%.0f, %.0f, %.0f)", spawn.EntityID, spawn.X, spawn.Y, spawn.Z)

	return wander(ctx, c, tables, spawn, walk)
}

func requestTicket(ctx context.Context, apiURL, name, password string) (*models.LoginTicket, error) {
	form := url.Values{"name": {name}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(apiURL, "/")+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request login ticket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login request failed with status %s", resp.Status)
	}

	ticket := &models.LoginTicket{}
	if err := json.NewDecoder(resp.Body).Decode(ticket); err != nil {
		return nil, fmt.Errorf("failed to decode login ticket: %w", err)
	}
	return ticket, nil
}

// awaitSpawn follows the spawn sequence until S_SPAWN_ME.
func awaitSpawn(c *client.Client) (*messages.SSpawnMe, error) {
	for {
		p, err := c.Receive(receiveTimeout)
		if err != nil {
			return nil, err
		}
		switch p := p.(type) {
		case *messages.SLoadTopo:
			log.Info("Loading zone %d", p.ZoneID)
		case *messages.SLoadHint:
			if err := c.Send(messages.CLoadTopoFin{}); err != nil {
				return nil, err
			}
		case *messages.SSpawnMe:
			return p, nil
		case *messages.SSystemMessage:
			return nil, fmt.Errorf("spawn failed with system message %d", p.MessageID)
		default:
			log.Debug("Received %s", p.Name())
		}
	}
}

// wander walks back and forth and logs who comes into view.
func wander(ctx context.Context, c *client.Client, tables *staticdata.Tables, spawn *messages.SSpawnMe, walk time.Duration) error {
	packets := make(chan messages.Packet)
	errs := make(chan error, 1)
	go func() {
		for {
			p, err := c.Receive(time.Hour)
			if err != nil {
				errs <- err
				return
			}
			packets <- p
		}
	}()

	ticker := time.NewTicker(walk)
	defer ticker.Stop()

	x, step := spawn.X, float32(50)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case p := <-packets:
			switch p := p.(type) {
			case *messages.SSpawnUser:
				log.Info("%s (entity %d) appeared at (%.0f, %.0f)", p.UserName, p.EntityID, p.X, p.Y)
			case *messages.SDespawnUser:
				log.Info("Entity %d left view", p.EntityID)
			case *messages.SSystemMessage:
				catalog := tables.MessageCatalog()
				if int(p.MessageID) < len(catalog) {
					log.Warn("System message %s", catalog[p.MessageID])
				}
			case *messages.SPing:
				if err := c.Send(messages.CPong{}); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if x > spawn.X+500 || x < spawn.X-500 {
				step = -step
			}
			x += step
			err := c.Send(messages.CPlayerLocation{X: x, Y: spawn.Y, Z: spawn.Z, Rotation: spawn.Rotation})
			if err != nil {
				return err
			}
		}
	}
}
