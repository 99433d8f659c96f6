package kubeutil

import (
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Kubeconfig finds a kubeconfig file.
//
// It searches, from the least priority,
//
// - `~/.kube/config`
//
// - environmental variable `KUBECONFIG`
//
// - explicit, usually given by the command line flag `-kubeconfig`
//
// Files not existing are skipped. Empty string means "no kubeconfig found".
func Kubeconfig(explicit string) string {
	kubeconfig := ""

	if home := homedir.HomeDir(); home != "" {
		if p := filepath.Join(home, ".kube", "config"); isFile(p) {
			kubeconfig = p
		}
	}

	if k := os.Getenv("KUBECONFIG"); k != "" && isFile(k) {
		kubeconfig = k
	}

	if explicit != "" && isFile(explicit) {
		kubeconfig = explicit
	}
	return kubeconfig
}

func isFile(p string) bool {
	s, err := os.Stat(p)
	return err == nil && !s.IsDir()
}

// ConnectToK8s creates *kubernetes.Clientset from the kubeconfig found by Kubeconfig(explicit).
//
// When no kubeconfig is found, it uses in-cluster config.
func ConnectToK8s(explicit string) (*kubernetes.Clientset, error) {
	var config *rest.Config
	var err error
	if kubeconfig := Kubeconfig(explicit); kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, err
	}

	return kubernetes.NewForConfig(config)
}
