package kb

import "time"

// sampleEntries are the canned endpoint-support rows inserted by Seed.
var sampleEntries = []Entry{
	{
		Category: "wifi",
		Question: "Why does my WiFi keep disconnecting?",
		Answer: "Try forgetting the SSID, rejoining, toggling airplane mode, flushing DNS, " +
			"and rebooting. If others are affected on the same AP, escalate as network incident.",
		Keywords: []string{"wifi", "wireless", "disconnect", "ssid"},
	},
	{
		Category: "vpn",
		Question: "Why is my VPN not connecting?",
		Answer: "Check basic internet connectivity, verify system date/time, restart VPN client, " +
			"reload profile from portal, and capture the error code for escalation.",
		Keywords: []string{"vpn", "tunnel", "remote access"},
	},
	{
		Category: "performance",
		Question: "Why is my laptop so slow?",
		Answer: "Restart, verify CPU/RAM in Task Manager, ensure at least 10% disk is free, " +
			"disable heavy startup apps, and run Endpoint Health remediation.",
		Keywords: []string{"slow", "lag", "performance", "slowness"},
	},
	{
		Category: "outlook",
		Question: "Outlook not syncing when remote",
		Answer: "Confirm VPN, restart Outlook, run Send/Receive, repair profile, and validate " +
			"mailbox size.",
		Keywords: []string{"outlook", "email", "sync", "mail"},
	},
	{
		Category: "smart card",
		Question: "Smart card is not detected",
		Answer: "Reinsert the card, try a different reader/port, restart smart card services, " +
			"reboot, and test card on another device.",
		Keywords: []string{"smart card", "piv", "badge"},
	},
	{
		Category: "automation",
		Question: "What can we automate in endpoint operations?",
		Answer: "Automate device onboarding/offboarding, role-based software installs, health " +
			"checks, patch compliance, and certificate renewals.",
		Keywords: []string{"automation", "scripting", "workflow"},
	},
}

// Seed inserts the sample knowledge entries plus one example log line and
// one device health snapshot. Seeding twice inserts duplicates; there is no
// uniqueness constraint.
func (s *SQLiteKB) Seed() (int, error) {
	inserted := 0
	for _, e := range sampleEntries {
		if _, err := s.Insert(e.Category, e.Question, e.Answer, e.Keywords); err != nil {
			return inserted, err
		}
		inserted++
	}

	now := time.Now().UTC()
	if err := s.InsertLog("VPN tunnel failure code 720 on LAPTOP-123", now); err != nil {
		return inserted, err
	}
	if err := s.InsertHealth(82, 69, "degraded", now); err != nil {
		return inserted, err
	}
	return inserted, nil
}
