package xutil

import (
	"fmt"
	"net"
)

// GetLocalIp 获取本机ipv4地址，优先返回内网ip，其次公网ip，最后回环地址
func GetLocalIp() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces failed, err=[%v]", err)
	}

	var private, public, loopback string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip := ipOf(addr)
			if ip == nil || ip.To4() == nil || ip.IsUnspecified() || ip.IsMulticast() {
				continue
			}
			switch {
			case ip.IsLoopback():
				if loopback == "" {
					loopback = ip.String()
				}
			case ip.IsPrivate() || ip.IsLinkLocalUnicast():
				if private == "" {
					private = ip.String()
				}
			default:
				if public == "" {
					public = ip.String()
				}
			}
		}
	}

	for _, ip := range []string{private, public, loopback} {
		if ip != "" {
			return ip, nil
		}
	}
	return "", fmt.Errorf("no ipv4 address found")
}

func ipOf(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPNet:
		return a.IP
	case *net.IPAddr:
		return a.IP
	}
	return nil
}
