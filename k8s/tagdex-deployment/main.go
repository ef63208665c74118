package main

import (
	"encoding/json"
	"fmt"
	"os"

	appsv1 "github.com/pulumi/pulumi-kubernetes/sdk/v3/go/kubernetes/apps/v1"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v3/go/kubernetes/core/v1"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v3/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"gitlab.com/pnathan/tagdex/src/lib/tagdexapi"
)

const (
	replicas = 3
	port     = 1337
)

// peerage lists every pod of the StatefulSet through the headless service.
func peerage(name string) tagdexapi.Peerage {
	p := tagdexapi.Peerage{Peers: []string{}}
	for i := 0; i < replicas; i++ {
		p.Peers = append(p.Peers, fmt.Sprintf("http://%s-%d.%s.%s:%d", name, i, name, name, port))
	}
	return p
}

func main() {
	deploymentName := "tagdex"
	namespace := deploymentName
	version := os.Getenv("TAGDEX_VERSION")
	corpus := os.Getenv("TAGDEX_CORPUS")

	pulumi.Run(func(ctx *pulumi.Context) error {
		appLabels := pulumi.StringMap{
			"app":     pulumi.String(deploymentName),
			"version": pulumi.String(version),
		}

		md := &metav1.ObjectMetaArgs{
			Labels:    appLabels,
			Namespace: pulumi.StringPtr(namespace),
			Name:      pulumi.StringPtr(deploymentName),
		}

		configData, err := json.Marshal(peerage(deploymentName))
		if err != nil {
			return err
		}
		data := pulumi.StringMap{"peers.json": pulumi.String(string(configData))}
		args := pulumi.StringArray{
			pulumi.String("/tagdex"), pulumi.String("-q"), pulumi.String("/etc/tagdex/peers.json"),
		}
		if corpus != "" {
			corpusData, err := os.ReadFile(corpus)
			if err != nil {
				return fmt.Errorf("reading corpus: %w", err)
			}
			data["corpus.json"] = pulumi.String(string(corpusData))
			args = append(args, pulumi.String("-c"), pulumi.String("/etc/tagdex/corpus.json"))
		}

		tagdexConfig, err := corev1.NewConfigMap(ctx, deploymentName, &corev1.ConfigMapArgs{
			Metadata: &metav1.ObjectMetaArgs{
				Labels:    appLabels,
				Name:      pulumi.StringPtr(deploymentName),
				Namespace: pulumi.String(namespace),
			},
			Data: data,
		})
		if err != nil {
			return err
		}

		tagdexConfigName := tagdexConfig.Metadata.Name()

		svc, err := corev1.NewService(ctx, deploymentName, &corev1.ServiceArgs{
			Metadata: md,
			Spec: corev1.ServiceSpecArgs{
				ClusterIP: pulumi.StringPtr("None"),
				Ports: corev1.ServicePortArray{
					corev1.ServicePortArgs{
						TargetPort: pulumi.Int(port),
						Port:       pulumi.Int(80),
					},
				},
				Selector: appLabels,
			},
		})
		if err != nil {
			return err
		}

		ctx.Export("svc name", svc.Metadata.Elem().Name())

		selector := &metav1.LabelSelectorArgs{
			MatchLabels: appLabels,
		}
		tagdexConfigVolumeName := pulumi.String("tagdex-configs")

		ss, err := appsv1.NewStatefulSet(ctx, deploymentName, &appsv1.StatefulSetArgs{
			Metadata: md,
			Spec: appsv1.StatefulSetSpecArgs{
				// the index is rebuilt from the corpus and from peers
				MinReadySeconds:     pulumi.Int(10),
				PodManagementPolicy: pulumi.StringPtr("Parallel"),
				Replicas:            pulumi.Int(replicas),
				Selector:            selector,
				ServiceName:         pulumi.String(deploymentName),
				Template: &corev1.PodTemplateSpecArgs{
					Metadata: &metav1.ObjectMetaArgs{
						Labels: appLabels,
					},
					Spec: &corev1.PodSpecArgs{
						Containers: corev1.ContainerArray{
							corev1.ContainerArgs{
								Name:            pulumi.String("tagdex"),
								Args:            args,
								ImagePullPolicy: pulumi.String("Always"),
								Image:           pulumi.String(fmt.Sprintf("gcr.io/sapient-fabric-207305/tagdex:%s", version)),
								Ports: corev1.ContainerPortArray{
									corev1.ContainerPortArgs{
										ContainerPort: pulumi.Int(port),
									},
								},
								ReadinessProbe: &corev1.ProbeArgs{
									HttpGet: &corev1.HTTPGetActionArgs{
										Path: pulumi.String("/healthz"),
										Port: pulumi.Int(port),
									},
								},
								VolumeMounts: &corev1.VolumeMountArray{
									&corev1.VolumeMountArgs{
										Name:      tagdexConfigVolumeName,
										MountPath: pulumi.String("/etc/tagdex/"),
									},
								},
							},
						},
						Volumes: &corev1.VolumeArray{
							&corev1.VolumeArgs{
								Name: tagdexConfigVolumeName,
								ConfigMap: &corev1.ConfigMapVolumeSourceArgs{
									Name: tagdexConfigName,
								},
							},
						},
					},
				},
			},
		})
		if err != nil {
			return err
		}

		ctx.Export("ss name", ss.Metadata.Elem().Name())

		return nil
	})
}
