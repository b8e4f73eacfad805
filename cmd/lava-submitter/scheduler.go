package main

import (
	"lava-submitter/internal/config"
	"lava-submitter/internal/rpc"

	"github.com/rs/zerolog"
)

// newScheduler connects the RPC client described by cfg. The returned close
// function releases the connection.
func newScheduler(cfg *config.Config, log *zerolog.Logger) (*rpc.Client, func() error, error) {
	caller, err := rpc.NewXMLRPCCaller(cfg.Identity())
	if err != nil {
		return nil, nil, err
	}
	proxy := rpc.NewProxy(caller, cfg.Policy(), log)
	return rpc.NewClient(proxy, log), caller.Close, nil
}
