package tencent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

var logger = log.With().Str("component", "tencent").Logger()

// Client 腾讯云机器翻译客户端，提供语种识别和文本翻译
type Client struct {
	tmtClient *tmt.Client
	projectID int64
}

func NewClient(secretID, secretKey, region string) (*Client, error) {
	if secretID == "" || secretKey == "" {
		return nil, errors.New("tencent secret id and key are required")
	}
	credential := common.NewCredential(secretID, secretKey)
	if region == "" {
		region = regions.Guangzhou
	}

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 10 // 秒
	cpf.HttpProfile.Endpoint = "tmt.tencentcloudapi.com"

	tmtClient, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		logger.Error().Err(err).Msg("new tencent client error")
		return nil, err
	}
	return &Client{tmtClient: tmtClient}, nil
}

func (c *Client) Name() string {
	return "Tencent TMT"
}

// DetectLanguage 识别文本语种，返回如 "zh"、"en"、"ja"
func (c *Client) DetectLanguage(ctx context.Context, text string) (string, error) {
	request := tmt.NewLanguageDetectRequest()
	request.Text = common.StringPtr(text)
	request.ProjectId = common.Int64Ptr(c.projectID)

	response, err := c.tmtClient.LanguageDetectWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("language detect failed: %w", err)
	}
	if response.Response == nil || response.Response.Lang == nil {
		return "", errors.New("language detect returned no language")
	}
	return *response.Response.Lang, nil
}

// Translate 翻译文本，source 可以为 "auto"
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	request := tmt.NewTextTranslateRequest()
	request.SourceText = common.StringPtr(text)
	request.Source = common.StringPtr(source)
	request.Target = common.StringPtr(target)
	request.ProjectId = common.Int64Ptr(c.projectID)

	response, err := c.tmtClient.TextTranslateWithContext(ctx, request)
	if err != nil {
		logger.Error().Err(err).Msg("failed to send request")
		return "", fmt.Errorf("text translate failed: %w", err)
	}
	if response.Response == nil || response.Response.TargetText == nil {
		return "", errors.New("text translate returned no text")
	}
	return *response.Response.TargetText, nil
}
