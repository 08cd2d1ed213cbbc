package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/libsv/go-p2p/wire"
)

var (
	ErrConfigUnknownNetwork = errors.New("unknown network")
	ErrPortP2PNotSet        = errors.New("port_p2p not set")
)

func GetNetwork(networkStr string) (wire.BitcoinNet, error) {
	switch networkStr {
	case "mainnet":
		return wire.MainNet, nil
	case "testnet":
		return wire.TestNet3, nil
	case "regtest":
		return wire.TestNet, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrConfigUnknownNetwork, networkStr)
	}
}

func (p *PeerConfig) GetZMQUrl() (*url.URL, error) {
	if p.ZMQ == 0 {
		return nil, fmt.Errorf("port_zmq not set for peer %s", p.Host)
	}

	zmqURLString := fmt.Sprintf("zmq://%s:%d", p.Host, p.ZMQ)

	return url.Parse(zmqURLString)
}

func (p *PeerConfig) GetP2PUrl() (string, error) {
	if p.P2P == 0 {
		return "", fmt.Errorf("%w: for peer %s", ErrPortP2PNotSet, p.Host)
	}

	return fmt.Sprintf("%s:%d", p.Host, p.P2P), nil
}
