// Command gatewayctl is a small operator CLI for the gateway: create
// tenants and devices, start/stop a device, and pull a pairing QR,
// all against a running gateway's HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	gateway := os.Getenv("GATEWAY_URL")
	if gateway == "" {
		gateway = "http://localhost:8080"
	}
	masterKey := os.Getenv("GATEWAY_MASTER_KEY")
	token := os.Getenv("GATEWAY_TOKEN")

	switch os.Args[1] {
	case "tenants":
		cmdTenants(gateway, masterKey)
	case "devices":
		cmdDevices(gateway, masterKey, token)
	case "version":
		fmt.Printf("gatewayctl v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gatewayctl v` + version + `

Usage: gatewayctl <command> [flags]

Commands:
  tenants create --name <name>       Create a tenant, prints its bearer token
  tenants list                       List tenants
  devices create --tenant <id> --name <name>   Register a device under a tenant
  devices list                       List devices owned by GATEWAY_TOKEN's tenant
  devices start --device <id>        Start a device's protocol socket
  devices stop --device <id>         Stop a device
  devices qr --device <id>           Request a pairing QR for a device
  version                            Print version
  help                                Show this help

Environment:
  GATEWAY_URL           Gateway URL (default: http://localhost:8080)
  GATEWAY_MASTER_KEY    Master key for admin commands (tenants create/list, devices create)
  GATEWAY_TOKEN         Tenant bearer token for tenant commands (devices list/start/stop/qr)`)
}

func cmdTenants(gateway, masterKey string) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: gatewayctl tenants <create|list>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "create":
		name := flagValue(os.Args[3:], "--name")
		if name == "" {
			fmt.Fprintln(os.Stderr, "Usage: gatewayctl tenants create --name <name>")
			os.Exit(1)
		}
		body, _ := json.Marshal(map[string]string{"name": name})
		resp, err := adminRequest("POST", gateway+"/admin/tenants", body, masterKey)
		exitOnError(err)
		printJSON(resp)
	case "list":
		resp, err := adminRequest("GET", gateway+"/admin/tenants", nil, masterKey)
		exitOnError(err)
		printJSON(resp)
	default:
		fmt.Fprintf(os.Stderr, "Unknown tenants subcommand: %s\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdDevices(gateway, masterKey, token string) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: gatewayctl devices <create|list|start|stop|qr>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "create":
		args := os.Args[3:]
		tenantID := flagValue(args, "--tenant")
		name := flagValue(args, "--name")
		if tenantID == "" || name == "" {
			fmt.Fprintln(os.Stderr, "Usage: gatewayctl devices create --tenant <id> --name <name>")
			os.Exit(1)
		}
		body, _ := json.Marshal(map[string]string{"label": name})
		resp, err := adminRequest("POST", gateway+"/admin/tenants/"+tenantID+"/devices", body, masterKey)
		exitOnError(err)
		printJSON(resp)
	case "list":
		resp, err := tenantRequest("GET", gateway+"/v1/devices", nil, token)
		exitOnError(err)
		printJSON(resp)
	case "start":
		deviceID := flagValue(os.Args[3:], "--device")
		requireDevice(deviceID)
		resp, err := tenantRequest("POST", gateway+"/v1/devices/"+deviceID+"/start", nil, token)
		exitOnError(err)
		fmt.Println("started")
		printJSON(resp)
	case "stop":
		deviceID := flagValue(os.Args[3:], "--device")
		requireDevice(deviceID)
		resp, err := tenantRequest("POST", gateway+"/v1/devices/"+deviceID+"/stop", nil, token)
		exitOnError(err)
		fmt.Println("stopped")
		printJSON(resp)
	case "qr":
		deviceID := flagValue(os.Args[3:], "--device")
		requireDevice(deviceID)
		resp, err := tenantRequest("POST", gateway+"/v1/devices/"+deviceID+"/pairing/qr", nil, token)
		exitOnError(err)
		printJSON(resp)
	default:
		fmt.Fprintf(os.Stderr, "Unknown devices subcommand: %s\n", os.Args[2])
		os.Exit(1)
	}
}

func requireDevice(deviceID string) {
	if deviceID == "" {
		fmt.Fprintln(os.Stderr, "Error: --device is required")
		os.Exit(1)
	}
}

func adminRequest(method, url string, body []byte, masterKey string) ([]byte, error) {
	return doRequest(method, url, body, map[string]string{"X-Master-Key": masterKey})
}

func tenantRequest(method, url string, body []byte, token string) ([]byte, error) {
	return doRequest(method, url, body, map[string]string{"Authorization": "Bearer " + token})
}

func doRequest(method, url string, body []byte, headers map[string]string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return raw, fmt.Errorf("gateway returned %s", resp.Status)
	}
	return raw, nil
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(raw []byte) {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		fmt.Println(string(raw))
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}
