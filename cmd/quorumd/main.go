package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	quorum "github.com/quorumlog/quorumd"
	"github.com/quorumlog/quorumd/admin"
	"github.com/quorumlog/quorumd/configuration"
	"github.com/quorumlog/quorumd/logbackend"
	"github.com/quorumlog/quorumd/mailbox"
	"github.com/quorumlog/quorumd/paxos"
	"github.com/quorumlog/quorumd/stats"
	"github.com/quorumlog/quorumd/transport"
	"github.com/quorumlog/quorumd/utils"
	"github.com/quorumlog/quorumd/utils/status"
)

// driverTick is the Master/Worker loop's sleep interval between
// passes on a clean pass; maxBackoff bounds how long a run of Flush
// failures can stretch that interval.
const (
	driverTick = time.Second
	maxBackoff = 30 * time.Second
)

// nextTick reports how long the driver loop should sleep before its
// next pass: driverTick on a clean Flush, or an exponentially growing
// delay from bbe while Flush keeps failing.
func nextTick(bbe *utils.BinaryBackoffEngine, failed bool) time.Duration {
	if !failed {
		bbe.Shrink(0)
		return driverTick
	}
	if d := bbe.Advance(); d > 0 {
		return d
	}
	return driverTick
}

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	logger.Log("product", quorum.ProductName, "version", quorum.ServerVersion, "args", fmt.Sprint(os.Args))

	if err := run(logger); err != nil {
		fmt.Printf("\n%v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: %s <master|worker> [--config FILE] [NAME]", os.Args[0])
	}

	role := os.Args[1]
	fs := flag.NewFlagSet(role, flag.ContinueOnError)
	configFile := fs.String("config", "", "`Path` to YAML configuration file. Omit to use built-in defaults.")
	version := fs.Bool("version", false, "Display version and exit.")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *version {
		fmt.Println(quorum.ProductName, "version", quorum.ServerVersion)
		return nil
	}

	var name string
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}

	switch role {
	case "master":
		return runMaster(logger, *configFile, name)
	case "worker":
		if name == "" {
			return fmt.Errorf("worker requires a NAME argument matching its config file entry")
		}
		return runWorker(logger, *configFile, name)
	default:
		return fmt.Errorf("unknown role %q: expected master or worker", role)
	}
}

func loadConfig(configFile, name string) (configuration.Config, error) {
	if configFile == "" {
		return configuration.Default(), nil
	}
	if name == "" {
		name = "master"
	}
	return configuration.Load(configFile, name)
}

func openBackend(spec configuration.LogBackendSpec) (logbackend.LogBackend, error) {
	if spec.Kind == configuration.File {
		return logbackend.OpenFile(spec.Path)
	}
	return logbackend.NewHeap(), nil
}

func runMaster(parent log.Logger, configFile, name string) error {
	logger := log.With(parent, "subsystem", "master")
	cfg, err := loadConfig(configFile, name)
	if err != nil {
		return err
	}

	tr, err := transport.New(cfg.Address, logger)
	if err != nil {
		return err
	}
	defer tr.Close()

	backend, err := openBackend(cfg.LogBackend)
	if err != nil {
		return err
	}

	mb := mailbox.New(tr, log.With(logger, "subsystem", "mailbox"))
	master := paxos.NewMaster(cfg.Address, cfg.AddressBook, mb, backend, logger)

	recorder := stats.NewRecorder(prometheus.DefaultRegisterer)
	master.SetMetrics(recorder)

	bus, head := admin.NewCmdBus()
	adminServer := admin.NewServer(bus, master, log.With(logger, "subsystem", "admin"))

	httpSrv := &http.Server{Addr: cfg.API, Handler: adminServer}
	adminDone := make(chan error, 1)
	go func() { adminDone <- httpSrv.ListenAndServe() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fillLoop(ctx, mb, logger)
	go signalHandler(cancel, logger, func() {
		sc := status.NewStatusConsumer()
		master.Status(sc)
		sc.Join()
		os.Stderr.WriteString(sc.Wait() + "\n")
	})

	backoff := utils.NewBinaryBackoffEngine(rand.New(rand.NewSource(time.Now().UnixNano())), driverTick, maxBackoff)

	for {
		select {
		case <-ctx.Done():
			bus.Shutdown()
			httpSrv.Close()
			return nil
		case err := <-adminDone:
			if err != nil && err != http.ErrServerClosed {
				logger.Log("msg", "admin http server exited", "error", err)
			}
			return err
		default:
		}

		if cmd, ok, terminate := bus.Drain(head); terminate {
			return nil
		} else if ok {
			dispatchCmd(master, cmd, logger)
		}

		master.DrainVotes()
		recorder.SetPending(master.PendingCount())
		err := master.Flush()
		if err != nil {
			utils.CheckWarn(err, logger)
		}

		time.Sleep(nextTick(backoff, err != nil))
	}
}

func dispatchCmd(master *paxos.Master, cmd admin.Cmd, logger log.Logger) {
	switch cmd.Kind {
	case admin.Log:
		id := master.EmitNewProposal(cmd.Content)
		logger.Log("msg", "proposal emitted", "id", id)
	case admin.Query:
		content, err := master.GetLog(cmd.ID)
		if cmd.Reply != nil {
			cmd.Reply <- admin.QueryResult{Content: content, Err: err}
		}
	}
}

func runWorker(parent log.Logger, configFile, name string) error {
	logger := log.With(parent, "subsystem", "worker")
	cfg, err := loadConfig(configFile, name)
	if err != nil {
		return err
	}

	tr, err := transport.New(cfg.Address, logger)
	if err != nil {
		return err
	}
	defer tr.Close()

	mb := mailbox.New(tr, log.With(logger, "subsystem", "mailbox"))
	worker := paxos.NewWorker(cfg.Address, cfg.AddressBook, mb, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fillLoop(ctx, mb, logger)
	go signalHandler(cancel, logger, func() {
		logger.Log("msg", "status", "lastProposalID", worker.LastProposalID())
	})

	backoff := utils.NewBinaryBackoffEngine(rand.New(rand.NewSource(time.Now().UnixNano())), driverTick, maxBackoff)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		worker.Run()
		err := mb.Flush()
		if err != nil {
			utils.CheckWarn(err, logger)
		}

		time.Sleep(nextTick(backoff, err != nil))
	}
}

// fillLoop continuously blocks on the mailbox's transport, admitting
// decoded Issues to the inbound queue. It returns once ctx is
// cancelled: Recv watches ctx, so cancellation alone unblocks an
// in-flight Recv. The caller's deferred transport.Close runs when
// runMaster/runWorker return.
func fillLoop(ctx context.Context, mb *mailbox.Mailbox, logger log.Logger) {
	for {
		if err := mb.Fill(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log("msg", "mailbox fill", "error", err)
		}
	}
}

// signalHandler dispatches SIGINT/SIGTERM to cooperative shutdown via
// cancel, and SIGUSR1 to a status dump via statusDump.
func signalHandler(cancel context.CancelFunc, logger log.Logger, statusDump func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGUSR1, os.Interrupt)
	for sig := range sigs {
		switch sig {
		case syscall.SIGTERM, os.Interrupt:
			logger.Log("msg", "shutdown requested")
			cancel()
			return
		case syscall.SIGUSR1:
			statusDump()
		}
	}
}
