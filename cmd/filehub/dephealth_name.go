// dephealth_name.go — имя вершины графа topologymetrics.
package main

import (
	"os"
	"regexp"
)

var (
	// deploymentPod — <owner>-<hash ReplicaSet>-<суффикс пода>
	deploymentPod = regexp.MustCompile(`^(.+)-[a-z0-9]{8,10}-[a-z0-9]{5}$`)
	// statefulSetPod — <owner>-<ordinal>
	statefulSetPod = regexp.MustCompile(`^(.+)-\d+$`)
)

// parseOwnerName извлекает имя владельца пода (Deployment, StatefulSet)
// из hostname. Если шаблон не распознан, возвращается hostname как есть.
func parseOwnerName(hostname string) string {
	if m := deploymentPod.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	if m := statefulSetPod.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	return hostname
}

// dephealthName — имя приложения для topologymetrics: владелец пода
// или "filehub" вне Kubernetes.
func dephealthName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" || hostname == "localhost" {
		return "filehub"
	}
	return parseOwnerName(hostname)
}
