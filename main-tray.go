//go:build tray

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/bartek5186/mosync/internal/app"
	"github.com/bartek5186/mosync/internal/integrations/authenticity"
	"github.com/bartek5186/mosync/internal/integrations/odoo"
	syncer "github.com/bartek5186/mosync/internal/syncer"
	"github.com/getlantern/systray"
)

// wersję można nadpisać przez: -ldflags "-X 'main.ver=1.0.1'"
var ver = "1.0.0"

func main() {
	// kontekst sterujący życiem procesu (CTRL+C / zamknięcie sesji)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, "", false)
	if err != nil {
		panic(err)
	}
	defer a.Close()
	log := a.Log

	// API działa przez cały czas życia traya; harmonogramy steruje menu
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := a.Serve(ctx, false); err != nil {
			log.Error().Err(err).Msg("Błąd serwera HTTP")
		}
	}()

	go func() {
		<-ctx.Done()
		systray.Quit()
	}()

	systray.Run(func() {
		systray.SetTitle("mosync")
		systray.SetTooltip(fmt.Sprintf("MO Sync %s", ver))

		mStartMO := systray.AddMenuItem("Start sync MO (Odoo)", "Uruchom harmonogram Odoo")
		mStopMO := systray.AddMenuItem("Stop sync MO (Odoo)", "Zatrzymaj harmonogram Odoo")
		mStartAuth := systray.AddMenuItem("Start sync authenticity", "Uruchom harmonogram authenticity")
		mStopAuth := systray.AddMenuItem("Stop sync authenticity", "Zatrzymaj harmonogram authenticity")
		mStopMO.Disable()
		mStopAuth.Disable()

		systray.AddSeparator()
		mOpenLogs := systray.AddMenuItem("Otwórz logi", "Pokaż plik log")
		mOpenCfg := systray.AddMenuItem("Ustawienia (config.json)", "Otwórz plik konfiguracyjny")
		mReload := systray.AddMenuItem("Przeładuj konfigurację", "Wczytaj ponownie config.json")
		systray.AddSeparator()
		mAbout := systray.AddMenuItem(fmt.Sprintf("O programie (%s)", ver), "")
		mQuit := systray.AddMenuItem("Wyjście", "Zamknij aplikację")

		refresh := func() {
			all := a.Syncer.StatusAll()
			toggle(mStartMO, mStopMO, all[odoo.Name].Running)
			toggle(mStartAuth, mStopAuth, all[authenticity.Name].Running)
			state := "zatrzymane"
			if a.Syncer.IsRunning() {
				state = "działa"
			}
			systray.SetTooltip(fmt.Sprintf("MO Sync %s | %s", ver, state))
		}

		start := func(job string) {
			if _, err := a.Syncer.Start(job, syncer.StartOptions{}); err != nil {
				log.Error().Err(err).Str("integration", job).Msg("Błąd startu")
				systray.SetTooltip(fmt.Sprintf("MO Sync %s | błąd startu %s", ver, job))
				return
			}
			refresh()
		}

		// AutoStart harmonogramów (nie mylić z autostartem systemu!)
		if a.Cfg.AutoStart {
			if err := a.Syncer.StartAll(); err != nil {
				log.Error().Err(err).Msg("AutoStart nieudany")
			}
			refresh()
		}

		go func() {
			for {
				select {
				case <-mStartMO.ClickedCh:
					start(odoo.Name)
				case <-mStopMO.ClickedCh:
					_ = a.Syncer.Stop(odoo.Name)
					refresh()
				case <-mStartAuth.ClickedCh:
					start(authenticity.Name)
				case <-mStopAuth.ClickedCh:
					_ = a.Syncer.Stop(authenticity.Name)
					refresh()

				case <-mOpenLogs.ClickedCh:
					openInExplorer(a.LogPath)

				case <-mOpenCfg.ClickedCh:
					openInExplorer(a.CfgPath)

				case <-mReload.ClickedCh:
					if err := a.Reload(); err != nil {
						log.Error().Err(err).Msg("Błąd reloadu")
						continue
					}
					refresh()

				case <-mAbout.ClickedCh:
					log.Info().Msgf("MO Sync %s | %s | dane: %s", ver, runtime.Version(), a.Dir)

				case <-mQuit.ClickedCh:
					// łagodne zamykanie: Serve zatrzyma harmonogramy
					cancel()
					return
				}
			}
		}()
	}, func() {
		cancel()
		select {
		case <-serveDone:
		case <-time.After(15 * time.Second):
		}
	})
}

func toggle(start, stop *systray.MenuItem, running bool) {
	if running {
		start.Disable()
		stop.Enable()
		return
	}
	start.Enable()
	stop.Disable()
}

// przenośne otwieranie plików/katalogów w domyślnej aplikacji
func openInExplorer(path string) {
	switch runtime.GOOS {
	case "windows":
		// "start" musi być uruchomiony przez cmd /C, z pustym tytułem okna ""
		_ = exec.Command("cmd", "/C", "start", "", path).Start()
	case "darwin":
		_ = exec.Command("open", path).Start()
	default:
		_ = exec.Command("xdg-open", path).Start()
	}
}
