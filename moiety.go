package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gopxl/beep"

	"github.com/mogaika/moiety/archive"
	"github.com/mogaika/moiety/audio"
	"github.com/mogaika/moiety/audio/device"
	"github.com/mogaika/moiety/cache"
	"github.com/mogaika/moiety/config"
	"github.com/mogaika/moiety/engine"
	"github.com/mogaika/moiety/loader"
	"github.com/mogaika/moiety/screen"
	"github.com/mogaika/moiety/status"
	"github.com/mogaika/moiety/utils"
	"github.com/mogaika/moiety/vfs"
	"github.com/mogaika/moiety/web"
)

const sampleRate = beep.SampleRate(44100)

func openTransport(c config.Resources) (loader.Transport, func(), error) {
	switch {
	case c.Archive != "":
		a, err := archive.Open(c.Archive)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[main] Using archive %s", c.Archive)
		return a, func() { a.Close() }, nil
	case c.Dir != "":
		log.Printf("[main] Using resource folder %s", c.Dir)
		return loader.NewDirTransport(vfs.NewDirectoryDriver(c.Dir)), func() {}, nil
	case c.Remote != "":
		log.Printf("[main] Using resource server %s", c.Remote)
		return loader.NewHTTPTransport(c.Remote, c.MaxInflight, c.Timeout), func() {}, nil
	}
	return nil, nil, nil
}

func main() {
	var cfgPath, addr, dir, archivePath, remote, start string
	var card int
	var serveOnly, debug bool
	flag.StringVar(&cfgPath, "c", "", "Path to yaml config")
	flag.StringVar(&addr, "i", "", "Address of server (overrides config)")
	flag.StringVar(&dir, "dir", "", "Path to resource folder")
	flag.StringVar(&archivePath, "archive", "", "Path to resource archive made by tools/packer")
	flag.StringVar(&remote, "remote", "", "Base url of a resource server")
	flag.StringVar(&start, "stack", "", "Start stack (overrides config)")
	flag.IntVar(&card, "card", 0, "Start card (overrides config)")
	flag.BoolVar(&serveOnly, "serve", false, "Only serve resources, do not run the player")
	flag.BoolVar(&debug, "debug", false, "Dump decoded records to log")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if dir != "" {
		cfg.Resources.Dir = dir
	}
	if archivePath != "" {
		cfg.Resources.Archive = archivePath
	}
	if remote != "" {
		cfg.Resources.Remote = remote
	}
	if start != "" {
		cfg.Player.StartStack = start
	}
	if card != 0 {
		cfg.Player.StartCard = card
	}
	cfg.Debug = cfg.Debug || debug
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := config.SetEncoding(cfg.Encoding); err != nil {
		log.Fatal(err)
	}

	transport, closeTransport, err := openTransport(cfg.Resources)
	if err != nil {
		log.Fatal(err)
	}
	if transport == nil {
		flag.PrintDefaults()
		return
	}
	defer closeTransport()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := status.Default()
	srv := &web.Server{Resources: transport, Hub: hub, WebDir: cfg.WebDir}

	if !serveOnly {
		l := loader.New(cache.New(cfg.Cache.Capacity), transport, hub, loader.Options{
			Priority: cfg.Cache.Priority,
			Validate: cfg.Resources.Validate,
			Debug:    cfg.Debug,
		})

		mixer := audio.NewMixer(sampleRate, config.FadeDuration)
		if cfg.Player.Audio {
			if err := device.Open(mixer); err != nil {
				log.Printf("[main] Audio device unavailable, playing silently: %v", err)
				go audio.Drain(ctx, mixer, sampleRate, 50*time.Millisecond)
			} else {
				defer device.Close()
			}
		} else {
			go audio.Drain(ctx, mixer, sampleRate, 50*time.Millisecond)
		}

		comp := screen.New(cfg.Player.Width, cfg.Player.Height, nil, utils.SystemClock{})
		session := engine.NewSession(l, comp, mixer, engine.Options{Hub: hub})
		player := engine.NewPlayer(session, 64)
		go func() {
			if err := player.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[main] Player stopped: %v", err)
			}
		}()
		if cfg.Player.StartStack != "" {
			player.Post(engine.Event{Kind: engine.EventGoto, Stack: cfg.Player.StartStack, Card: cfg.Player.StartCard})
		}

		srv.Player = player
		srv.Screen = comp
	}

	if err := web.StartServer(ctx, cfg.Addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
